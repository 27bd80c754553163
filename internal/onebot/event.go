// Package onebot connects the engine to QQ through a OneBot v11 implementation
// (go-cqhttp, NapCat, Lagrange) over its forward websocket.
package onebot

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/edgard/bymbot/internal/face"
)

// Sender is the sender block of a group message event.
type Sender struct {
	UserID   int64
	Nickname string
	Card     string
	Role     string
	Title    string
}

// DisplayName returns the group card, or the nickname when no card is set.
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

// Event is a normalized message event.
type Event struct {
	PostType    string
	MessageType string
	MessageID   string
	GroupID     int64
	UserID      int64
	SelfID      int64
	Time        time.Time
	Sender      Sender

	// Text is the plain text of the message, faces rendered as "[name]".
	Text    string
	AtMe    bool
	Images  []string
	ReplyID string
}

// IsGroupMessage reports whether the event is a message posted in a group.
func (e *Event) IsGroupMessage() bool {
	return e.PostType == "message" && e.MessageType == "group" && e.GroupID != 0
}

// ParseEvent normalizes one websocket payload. Numeric ids may arrive as
// numbers or strings and the message body as a segment array or a CQ-code
// string.
func ParseEvent(payload []byte) *Event {
	root := gjson.ParseBytes(payload)
	ts := root.Get("time").Int()

	evt := &Event{
		PostType:    root.Get("post_type").String(),
		MessageType: root.Get("message_type").String(),
		MessageID:   root.Get("message_id").String(),
		GroupID:     root.Get("group_id").Int(),
		UserID:      root.Get("user_id").Int(),
		SelfID:      root.Get("self_id").Int(),
		Sender: Sender{
			UserID:   root.Get("sender.user_id").Int(),
			Nickname: root.Get("sender.nickname").String(),
			Card:     root.Get("sender.card").String(),
			Role:     root.Get("sender.role").String(),
			Title:    root.Get("sender.title").String(),
		},
	}
	if ts > 0 {
		evt.Time = time.Unix(ts, 0)
	} else {
		evt.Time = time.Now()
	}

	msg := root.Get("message")
	var body parsedBody
	switch {
	case msg.IsArray():
		body = parseSegments(msg, evt.SelfID)
	case msg.Type == gjson.String:
		body = parseCQ(msg.Str, evt.SelfID)
	default:
		body = parseCQ(root.Get("raw_message").String(), evt.SelfID)
	}
	evt.Text = strings.TrimSpace(body.text.String())
	evt.AtMe = body.atMe
	evt.Images = body.images
	evt.ReplyID = body.replyID
	return evt
}

// forwardMarker stands in for a merged-forward message so long forwards can be
// told apart from long typed input.
const forwardMarker = "[合并转发]"

type parsedBody struct {
	text    strings.Builder
	atMe    bool
	images  []string
	replyID string
}

func (b *parsedBody) add(kind string, get func(key string) string, selfID int64) {
	switch kind {
	case "text":
		b.text.WriteString(get("text"))
	case "at":
		qq := get("qq")
		if selfID != 0 && qq == strconv.FormatInt(selfID, 10) {
			b.atMe = true
		}
	case "face":
		if id, err := strconv.Atoi(get("id")); err == nil {
			if name, ok := face.Name(id); ok {
				b.text.WriteString("[" + name + "]")
			}
		}
	case "image":
		ref := get("url")
		if ref == "" {
			ref = get("file")
		}
		if ref != "" {
			b.images = append(b.images, ref)
		}
	case "reply":
		b.replyID = get("id")
	case "forward":
		b.text.WriteString(forwardMarker)
	}
}

func parseSegments(msg gjson.Result, selfID int64) parsedBody {
	var b parsedBody
	msg.ForEach(func(_, seg gjson.Result) bool {
		data := seg.Get("data")
		kind := seg.Get("type").String()
		b.add(kind, func(key string) string {
			if kind == "text" {
				return data.Get(key).String()
			}
			return strings.TrimSpace(data.Get(key).String())
		}, selfID)
		return true
	})
	return b
}

var cqPattern = regexp.MustCompile(`\[CQ:([a-zA-Z0-9_]+)((?:,[^\]]*)?)\]`)

func parseCQ(content string, selfID int64) parsedBody {
	var b parsedBody
	cursor := 0
	for _, m := range cqPattern.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > cursor {
			b.text.WriteString(unescapeCQ(content[cursor:m[0]]))
		}
		params := parseCQParams(content[m[4]:m[5]])
		b.add(content[m[2]:m[3]], func(key string) string { return params[key] }, selfID)
		cursor = m[1]
	}
	if cursor < len(content) {
		b.text.WriteString(unescapeCQ(content[cursor:]))
	}
	return b
}

func parseCQParams(raw string) map[string]string {
	params := make(map[string]string)
	for item := range strings.SplitSeq(strings.TrimPrefix(raw, ","), ",") {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		params[strings.TrimSpace(key)] = strings.TrimSpace(unescapeCQ(value))
	}
	return params
}

var cqUnescaper = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")

func unescapeCQ(s string) string {
	return cqUnescaper.Replace(s)
}
