// Package bym implements the ambient response engine: for every group message
// that is not a command it resolves the response policy, decides whether to
// join the conversation, builds a guarded prompt from recent history, calls the
// model with a privilege-dependent tool set and delivers the reply as paced,
// humanized segments.
package bym

import (
	"context"
	"time"

	"github.com/edgard/bymbot/internal/face"
	"github.com/edgard/bymbot/internal/llm"
)

// Role is a member's role in a group.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Label returns the Chinese role name used in rendered history.
func (r Role) Label() string {
	switch r {
	case RoleOwner:
		return "群主"
	case RoleAdmin:
		return "管理员"
	case RoleMember:
		return "成员"
	default:
		return "未知角色"
	}
}

// Privileged reports whether the role can moderate the group.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Message is one inbound group message as seen by the engine.
type Message struct {
	ID          string
	GroupID     int64
	SenderID    int64
	SenderName  string
	SenderRole  Role
	SenderTitle string
	Text        string
	// Images holds host-specific image references (URLs for QQ, file ids for Telegram).
	Images []string
	AtMe   bool
	// BotRole is the bot's own role in the group; it gates moderation tools.
	BotRole Role
	Time    time.Time

	reentered bool
}

// HistoryEntry is one past message of a group.
type HistoryEntry struct {
	SenderID    int64
	DisplayName string
	Role        Role
	Title       string
	Time        time.Time
	Text        string
	MessageID   string
}

// ReplyOptions tune a single outbound segment.
type ReplyOptions struct {
	Quote       bool
	RecallAfter time.Duration
}

// History returns recent messages of a group in any order.
type History interface {
	RecentHistory(ctx context.Context, groupID int64, count int) ([]HistoryEntry, error)
}

// Replier sends one segment into the group the message came from.
type Replier interface {
	Reply(ctx context.Context, msg *Message, parts []face.Part, opts ReplyOptions) error
}

// MemberDirectory maps member display names and nicknames to user ids.
type MemberDirectory interface {
	MemberIDs(ctx context.Context, groupID int64) (map[string]int64, error)
}

// ImageFetcher downloads an image by host reference.
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) (*llm.Image, error)
}
