package bym

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/bymbot/internal/face"
)

const (
	// quotePercent is the chance, in percent, that a segment quotes the trigger.
	quotePercent = 10
	// recallAfter is how long fight-back segments stay visible.
	recallAfter = 10 * time.Second
	// pacePerRune simulates typing speed between segments.
	pacePerRune = 200 * time.Millisecond
	// maxPace caps the pause between two segments.
	maxPace = 3 * time.Second
)

// Pace returns the pause after sending seg.
func Pace(seg string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(seg)) * pacePerRune
	return min(d, maxPace)
}

// Dispatcher delivers a model reply as paced segments.
type Dispatcher struct {
	replier Replier
	members MemberDirectory
	rand    func(n int) int
	sleep   func(ctx context.Context, d time.Duration) error
	log     *slog.Logger
}

// Dispatch splits text and sends each segment. Send failures are logged and
// skipped; only cancellation of ctx stops delivery early. It returns the number
// of segments delivered or claimed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message, text string, recall bool, namer ImageNamer) (int, error) {
	segs := SplitSegments(text)
	if len(segs) == 0 {
		return 0, nil
	}

	var (
		members       map[string]int64
		membersLoaded bool
		sent          int
	)
	for i, seg := range segs {
		if i > 0 {
			if err := d.sleep(ctx, Pace(segs[i-1])); err != nil {
				return sent, err
			}
		}

		if namer != nil {
			claimed, err := namer.ClaimSegment(ctx, msg, seg)
			if err != nil {
				d.log.WarnContext(ctx, "Image namer failed to process segment", "error", err, "chat_id", msg.GroupID)
			}
			if claimed {
				sent++
				continue
			}
		}

		if !membersLoaded && d.members != nil && strings.Contains(seg, "@") {
			membersLoaded = true
			m, err := d.members.MemberIDs(ctx, msg.GroupID)
			if err != nil {
				d.log.WarnContext(ctx, "Failed to load group members for mentions", "error", err, "chat_id", msg.GroupID)
			}
			members = m
		}

		opts := ReplyOptions{Quote: d.rand(100) < quotePercent}
		if recall {
			opts.RecallAfter = recallAfter
		}
		if err := d.replier.Reply(ctx, msg, face.Convert(seg, members), opts); err != nil {
			d.log.ErrorContext(ctx, "Failed to send reply segment", "error", err, "chat_id", msg.GroupID, "segment", i)
			continue
		}
		sent++
	}
	return sent, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
