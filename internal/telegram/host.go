package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/face"
	"github.com/edgard/bymbot/internal/llm"
)

const (
	defaultFileBaseURL   = "https://api.telegram.org"
	photoDownloadTimeout = 30 * time.Second
	sendMessageTimeout   = 10 * time.Second
	maxPhotoBytes        = 10 * 1024 * 1024
	roleCacheTTL         = 10 * time.Minute

	// forwardMarker prefixes forwarded messages so long forwards are not
	// mistaken for typed input.
	forwardMarker = "[转发]"
)

// ErrUnsupported is returned for group actions Telegram has no equivalent for.
var ErrUnsupported = errors.New("not supported on telegram")

// MemberStore resolves display names seen in a chat to user ids.
type MemberStore interface {
	ChatMembers(ctx context.Context, chatID int64) (map[string]int64, error)
}

type roleEntry struct {
	role    bym.Role
	title   string
	fetched time.Time
}

// Host adapts a go-telegram/bot instance to the engine's ports and to the
// moderation tools.
type Host struct {
	bot         *bot.Bot
	token       string
	self        *models.User
	members     MemberStore
	httpClient  *http.Client
	fileBaseURL string
	log         *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	roles map[string]roleEntry
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithFileBaseURL overrides the file download endpoint, e.g. for a local Bot API server.
func WithFileBaseURL(u string) HostOption {
	return func(h *Host) { h.fileBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for file downloads.
func WithHTTPClient(c *http.Client) HostOption {
	return func(h *Host) { h.httpClient = c }
}

// NewHost wraps b. self is the bot's own account from getMe.
func NewHost(b *bot.Bot, token string, self *models.User, members MemberStore, logger *slog.Logger, opts ...HostOption) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		bot:         b,
		token:       token,
		self:        self,
		members:     members,
		httpClient:  &http.Client{Timeout: photoDownloadTimeout},
		fileBaseURL: defaultFileBaseURL,
		log:         logger.With("component", "telegram_host"),
		now:         time.Now,
		roles:       make(map[string]roleEntry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsGroup reports whether msg was posted in a group or supergroup.
func IsGroup(msg *models.Message) bool {
	return msg != nil && (msg.Chat.Type == models.ChatTypeGroup || msg.Chat.Type == models.ChatTypeSupergroup)
}

// DisplayName renders a Telegram user the way group members see them.
func DisplayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// Message converts a group message into the engine's view of it. A mention of
// the bot's @username or a reply to one of its messages counts as addressing
// it; the mention itself is removed from the text.
func (h *Host) Message(ctx context.Context, m *models.Message) *bym.Message {
	text := m.Text
	if text == "" {
		text = m.Caption
	}

	atMe := false
	if h.self != nil {
		if h.self.Username != "" {
			mention := "@" + h.self.Username
			if strings.Contains(text, mention) {
				atMe = true
				text = strings.ReplaceAll(text, mention, "")
			}
		}
		if r := m.ReplyToMessage; r != nil && r.From != nil && r.From.ID == h.self.ID {
			atMe = true
		}
	}

	var images []string
	if n := len(m.Photo); n > 0 {
		images = append(images, m.Photo[n-1].FileID)
	}

	text = strings.TrimSpace(text)
	if m.ForwardOrigin != nil {
		text = forwardMarker + text
	}

	msg := &bym.Message{
		ID:      strconv.Itoa(m.ID),
		GroupID: m.Chat.ID,
		Text:    text,
		Images:  images,
		AtMe:    atMe,
		Time:    time.Unix(int64(m.Date), 0),
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
		msg.SenderName = DisplayName(m.From)
		msg.SenderRole, msg.SenderTitle = h.memberRole(ctx, m.Chat.ID, m.From.ID)
	}
	if h.self != nil {
		msg.BotRole, _ = h.memberRole(ctx, m.Chat.ID, h.self.ID)
	}
	return msg
}

func (h *Host) memberRole(ctx context.Context, chatID, userID int64) (bym.Role, string) {
	key := strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
	h.mu.Lock()
	e, ok := h.roles[key]
	h.mu.Unlock()
	if ok && h.now().Sub(e.fetched) < roleCacheTTL {
		return e.role, e.title
	}

	member, err := h.bot.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		h.log.WarnContext(ctx, "Failed to get chat member", "error", err, "chat_id", chatID, "user_id", userID)
		return bym.RoleMember, ""
	}

	e = roleEntry{role: bym.RoleMember, fetched: h.now()}
	switch member.Type {
	case models.ChatMemberTypeOwner:
		e.role = bym.RoleOwner
		if member.Owner != nil {
			e.title = member.Owner.CustomTitle
		}
	case models.ChatMemberTypeAdministrator:
		e.role = bym.RoleAdmin
		if member.Administrator != nil {
			e.title = member.Administrator.CustomTitle
		}
	}

	h.mu.Lock()
	h.roles[key] = e
	h.mu.Unlock()
	return e.role, e.title
}

// Reply sends one segment as a text message. Faces and mentions are rendered
// as plain text.
func (h *Host) Reply(ctx context.Context, msg *bym.Message, parts []face.Part, opts bym.ReplyOptions) error {
	text := strings.TrimSpace(face.Plain(parts))
	if text == "" {
		return nil
	}

	params := &bot.SendMessageParams{ChatID: msg.GroupID, Text: text}
	if opts.Quote {
		if id, err := strconv.Atoi(msg.ID); err == nil && id > 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: id, AllowSendingWithoutReply: true}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	sent, err := h.bot.SendMessage(sendCtx, params)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if opts.RecallAfter > 0 && sent != nil {
		h.scheduleRecall(ctx, msg.GroupID, sent.ID, opts.RecallAfter)
	}
	return nil
}

func (h *Host) scheduleRecall(ctx context.Context, chatID int64, messageID int, after time.Duration) {
	base := context.WithoutCancel(ctx)
	time.AfterFunc(after, func() {
		rctx, cancel := context.WithTimeout(base, sendMessageTimeout)
		defer cancel()
		if _, err := h.bot.DeleteMessage(rctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
			h.log.WarnContext(rctx, "Failed to recall message", "error", err, "chat_id", chatID, "message_id", messageID)
		}
	})
}

// MemberIDs maps display names seen in the chat history to user ids.
// Telegram offers no member listing to bots.
func (h *Host) MemberIDs(ctx context.Context, groupID int64) (map[string]int64, error) {
	if h.members == nil {
		return map[string]int64{}, nil
	}
	return h.members.ChatMembers(ctx, groupID)
}

// FetchImage downloads a photo by file id.
func (h *Host) FetchImage(ctx context.Context, fileID string) (*llm.Image, error) {
	if fileID == "" {
		return nil, errors.New("empty file id")
	}
	dctx, cancel := context.WithTimeout(ctx, photoDownloadTimeout)
	defer cancel()

	file, err := h.bot.GetFile(dctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, errors.New("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", h.fileBaseURL, h.token, file.FilePath)
	req, err := http.NewRequestWithContext(dctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("received empty file data")
	}
	return &llm.Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
}

// SetCard is unsupported: Telegram has no per-group display names.
func (h *Host) SetCard(context.Context, int64, int64, string) error {
	return fmt.Errorf("set card: %w", ErrUnsupported)
}

// Mute restricts a member from sending messages for d. Zero lifts the restriction.
func (h *Host) Mute(ctx context.Context, groupID, userID int64, d time.Duration) error {
	allowed := d == 0
	params := &bot.RestrictChatMemberParams{
		ChatID: groupID,
		UserID: userID,
		Permissions: &models.ChatPermissions{
			CanSendMessages:       allowed,
			CanSendAudios:         allowed,
			CanSendDocuments:      allowed,
			CanSendPhotos:         allowed,
			CanSendVideos:         allowed,
			CanSendVideoNotes:     allowed,
			CanSendVoiceNotes:     allowed,
			CanSendPolls:          allowed,
			CanSendOtherMessages:  allowed,
			CanAddWebPagePreviews: allowed,
		},
	}
	if d > 0 {
		params.UntilDate = int(h.now().Add(d).Unix())
	}
	if _, err := h.bot.RestrictChatMember(ctx, params); err != nil {
		return fmt.Errorf("failed to restrict member: %w", err)
	}
	return nil
}

// Kick removes a member without banning them permanently.
func (h *Host) Kick(ctx context.Context, groupID, userID int64) error {
	if _, err := h.bot.BanChatMember(ctx, &bot.BanChatMemberParams{ChatID: groupID, UserID: userID}); err != nil {
		return fmt.Errorf("failed to ban member: %w", err)
	}
	if _, err := h.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{ChatID: groupID, UserID: userID, OnlyIfBanned: true}); err != nil {
		return fmt.Errorf("failed to unban member: %w", err)
	}
	return nil
}

// SetTitle sets an administrator's custom title.
func (h *Host) SetTitle(ctx context.Context, groupID, userID int64, title string) error {
	_, err := h.bot.SetChatAdministratorCustomTitle(ctx, &bot.SetChatAdministratorCustomTitleParams{
		ChatID:      groupID,
		UserID:      userID,
		CustomTitle: title,
	})
	if err != nil {
		return fmt.Errorf("failed to set custom title: %w", err)
	}
	return nil
}

// SendImage posts a photo by URL or file id.
func (h *Host) SendImage(ctx context.Context, groupID int64, ref string) error {
	_, err := h.bot.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: groupID, Photo: &models.InputFileString{Data: ref}})
	if err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// SendImageData uploads img as a photo.
func (h *Host) SendImageData(ctx context.Context, groupID int64, img *llm.Image) error {
	photo := &models.InputFileUpload{Filename: "sticker", Data: bytes.NewReader(img.Data)}
	if _, err := h.bot.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: groupID, Photo: photo}); err != nil {
		return fmt.Errorf("failed to upload photo: %w", err)
	}
	return nil
}
