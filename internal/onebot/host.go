package onebot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/face"
	"github.com/edgard/bymbot/internal/llm"
)

const (
	defaultMemberCacheTTL = 10 * time.Minute
	defaultImageMaxBytes  = 10 * 1024 * 1024
	imageDownloadTimeout  = 30 * time.Second
	recallTimeout         = 10 * time.Second
)

type memberCache struct {
	ids     map[string]int64
	roles   map[int64]bym.Role
	fetched time.Time
}

// Host adapts a Client to the engine's ports and to the moderation tools.
type Host struct {
	client     *Client
	cfg        config.OneBotConfig
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	members map[int64]*memberCache
}

// NewHost wraps client. httpClient is used for image downloads and may be nil.
func NewHost(client *Client, cfg config.OneBotConfig, httpClient *http.Client, logger *slog.Logger) *Host {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: imageDownloadTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		client:     client,
		cfg:        cfg,
		httpClient: httpClient,
		log:        logger.With("component", "onebot_host"),
		now:        time.Now,
		members:    make(map[int64]*memberCache),
	}
}

// ParseRole maps a OneBot role string to a bym.Role.
func ParseRole(role string) bym.Role {
	switch role {
	case "owner":
		return bym.RoleOwner
	case "admin":
		return bym.RoleAdmin
	default:
		return bym.RoleMember
	}
}

// Message converts a group message event into the engine's view of it,
// filling in the bot's own role from the member cache.
func (h *Host) Message(ctx context.Context, evt *Event) *bym.Message {
	senderID := evt.UserID
	if senderID == 0 {
		senderID = evt.Sender.UserID
	}
	return &bym.Message{
		ID:          evt.MessageID,
		GroupID:     evt.GroupID,
		SenderID:    senderID,
		SenderName:  evt.Sender.DisplayName(),
		SenderRole:  ParseRole(evt.Sender.Role),
		SenderTitle: evt.Sender.Title,
		Text:        evt.Text,
		Images:      evt.Images,
		AtMe:        evt.AtMe,
		BotRole:     h.BotRole(ctx, evt.GroupID),
		Time:        evt.Time,
	}
}

// Reply sends one segment to the message's group. A quoted reply leads with a
// reply segment; RecallAfter schedules a delete_msg.
func (h *Host) Reply(ctx context.Context, msg *bym.Message, parts []face.Part, opts bym.ReplyOptions) error {
	segs := Segments(parts)
	if len(segs) == 0 {
		return nil
	}
	if opts.Quote && msg.ID != "" {
		segs = append([]Segment{ReplySegment(msg.ID)}, segs...)
	}

	id, err := h.client.SendGroupMsg(ctx, msg.GroupID, segs)
	if err != nil {
		return fmt.Errorf("failed to send group message: %w", err)
	}
	if opts.RecallAfter > 0 && id != 0 {
		h.scheduleRecall(ctx, msg.GroupID, id, opts.RecallAfter)
	}
	return nil
}

func (h *Host) scheduleRecall(ctx context.Context, groupID, messageID int64, after time.Duration) {
	base := context.WithoutCancel(ctx)
	time.AfterFunc(after, func() {
		rctx, cancel := context.WithTimeout(base, recallTimeout)
		defer cancel()
		if err := h.client.DeleteMsg(rctx, messageID); err != nil {
			h.log.WarnContext(rctx, "Failed to recall message", "error", err, "chat_id", groupID, "message_id", messageID)
			return
		}
		h.log.DebugContext(rctx, "Message recalled", "chat_id", groupID, "message_id", messageID)
	})
}

// MemberIDs maps member cards and nicknames to user ids, cached per group.
func (h *Host) MemberIDs(ctx context.Context, groupID int64) (map[string]int64, error) {
	c, err := h.loadMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return c.ids, nil
}

// BotRole returns the bot's role in groupID, or RoleMember when unknown.
func (h *Host) BotRole(ctx context.Context, groupID int64) bym.Role {
	self := h.client.SelfID()
	if self == 0 {
		return bym.RoleMember
	}
	c, err := h.loadMembers(ctx, groupID)
	if err == nil {
		if role, ok := c.roles[self]; ok {
			return role
		}
	}
	m, err := h.client.GetGroupMemberInfo(ctx, groupID, self)
	if err != nil {
		h.log.WarnContext(ctx, "Failed to look up bot role", "error", err, "chat_id", groupID)
		return bym.RoleMember
	}
	return ParseRole(m.Role)
}

func (h *Host) loadMembers(ctx context.Context, groupID int64) (*memberCache, error) {
	ttl := h.cfg.MemberCacheTTL
	if ttl <= 0 {
		ttl = defaultMemberCacheTTL
	}

	h.mu.Lock()
	c, ok := h.members[groupID]
	h.mu.Unlock()
	if ok && h.now().Sub(c.fetched) < ttl {
		return c, nil
	}

	list, err := h.client.GetGroupMemberList(ctx, groupID)
	if err != nil {
		if ok {
			h.log.WarnContext(ctx, "Member list refresh failed, using stale cache", "error", err, "chat_id", groupID)
			return c, nil
		}
		return nil, fmt.Errorf("failed to load members of group %d: %w", groupID, err)
	}

	c = &memberCache{
		ids:     make(map[string]int64, len(list)*2),
		roles:   make(map[int64]bym.Role, len(list)),
		fetched: h.now(),
	}
	for _, m := range list {
		if m.Nickname != "" {
			c.ids[m.Nickname] = m.UserID
		}
		if m.Card != "" {
			c.ids[m.Card] = m.UserID
		}
		c.roles[m.UserID] = ParseRole(m.Role)
	}

	h.mu.Lock()
	h.members[groupID] = c
	h.mu.Unlock()
	return c, nil
}

// FetchImage downloads an image URL, bounded by cfg.ImageMaxBytes.
func (h *Host) FetchImage(ctx context.Context, ref string) (*llm.Image, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return nil, fmt.Errorf("unsupported image reference %q", ref)
	}
	limit := h.cfg.ImageMaxBytes
	if limit <= 0 {
		limit = defaultImageMaxBytes
	}

	dctx, cancel := context.WithTimeout(ctx, imageDownloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(dctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("received empty image data")
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("downloaded content is %s, not an image", mime)
	}
	return &llm.Image{Data: data, MIMEType: mime}, nil
}

// SetCard implements group administration for the moderation tools.
func (h *Host) SetCard(ctx context.Context, groupID, userID int64, card string) error {
	return h.client.SetGroupCard(ctx, groupID, userID, card)
}

func (h *Host) Mute(ctx context.Context, groupID, userID int64, d time.Duration) error {
	return h.client.SetGroupBan(ctx, groupID, userID, d)
}

func (h *Host) Kick(ctx context.Context, groupID, userID int64) error {
	return h.client.SetGroupKick(ctx, groupID, userID)
}

func (h *Host) SetTitle(ctx context.Context, groupID, userID int64, title string) error {
	return h.client.SetGroupSpecialTitle(ctx, groupID, userID, title)
}

func (h *Host) SendImage(ctx context.Context, groupID int64, ref string) error {
	_, err := h.client.SendGroupMsg(ctx, groupID, []Segment{ImageSegment(ref)})
	return err
}

// SendImageData sends img inline as a base64:// image segment.
func (h *Host) SendImageData(ctx context.Context, groupID int64, img *llm.Image) error {
	return h.SendImage(ctx, groupID, "base64://"+img.Base64())
}
