package onebot

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/edgard/bymbot/internal/face"
)

// Segment is one element of an outbound message array.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// TextSegment builds a text segment.
func TextSegment(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

// ImageSegment builds an image segment from a URL or file reference.
func ImageSegment(ref string) Segment {
	return Segment{Type: "image", Data: map[string]any{"file": ref}}
}

// ReplySegment quotes the message with the given id.
func ReplySegment(messageID string) Segment {
	return Segment{Type: "reply", Data: map[string]any{"id": messageID}}
}

// Segments converts face parts into OneBot segments.
func Segments(parts []face.Part) []Segment {
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case face.KindFace:
			segs = append(segs, Segment{Type: "face", Data: map[string]any{"id": p.FaceID}})
		case face.KindAt:
			segs = append(segs, Segment{Type: "at", Data: map[string]any{"qq": p.UserID}})
		default:
			if p.Text != "" {
				segs = append(segs, TextSegment(p.Text))
			}
		}
	}
	return segs
}

// Member is one entry of a group member list.
type Member struct {
	UserID   int64
	Nickname string
	Card     string
	Role     string
	Title    string
}

func parseMember(r gjson.Result) Member {
	return Member{
		UserID:   r.Get("user_id").Int(),
		Nickname: r.Get("nickname").String(),
		Card:     r.Get("card").String(),
		Role:     r.Get("role").String(),
		Title:    r.Get("title").String(),
	}
}

// SendGroupMsg posts segments to a group and returns the new message id.
func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, segs []Segment) (int64, error) {
	data, err := c.Call(ctx, "send_group_msg", map[string]any{"group_id": groupID, "message": segs})
	if err != nil {
		return 0, err
	}
	return data.Get("message_id").Int(), nil
}

// DeleteMsg recalls a message.
func (c *Client) DeleteMsg(ctx context.Context, messageID int64) error {
	_, err := c.Call(ctx, "delete_msg", map[string]any{"message_id": messageID})
	return err
}

// GetLoginInfo returns the bot's own QQ number and nickname.
func (c *Client) GetLoginInfo(ctx context.Context) (int64, string, error) {
	data, err := c.Call(ctx, "get_login_info", nil)
	if err != nil {
		return 0, "", err
	}
	id := data.Get("user_id").Int()
	if id != 0 {
		c.selfID.Store(id)
	}
	return id, data.Get("nickname").String(), nil
}

// GetGroupMemberList returns every member of a group.
func (c *Client) GetGroupMemberList(ctx context.Context, groupID int64) ([]Member, error) {
	data, err := c.Call(ctx, "get_group_member_list", map[string]any{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var members []Member
	data.ForEach(func(_, m gjson.Result) bool {
		members = append(members, parseMember(m))
		return true
	})
	return members, nil
}

// GetGroupMemberInfo returns one member of a group.
func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (Member, error) {
	data, err := c.Call(ctx, "get_group_member_info", map[string]any{"group_id": groupID, "user_id": userID, "no_cache": false})
	if err != nil {
		return Member{}, err
	}
	return parseMember(data), nil
}

// SetGroupCard changes a member's group card.
func (c *Client) SetGroupCard(ctx context.Context, groupID, userID int64, card string) error {
	_, err := c.Call(ctx, "set_group_card", map[string]any{"group_id": groupID, "user_id": userID, "card": card})
	return err
}

// SetGroupBan mutes a member for d; zero lifts the mute.
func (c *Client) SetGroupBan(ctx context.Context, groupID, userID int64, d time.Duration) error {
	_, err := c.Call(ctx, "set_group_ban", map[string]any{"group_id": groupID, "user_id": userID, "duration": int64(d / time.Second)})
	return err
}

// SetGroupKick removes a member from a group.
func (c *Client) SetGroupKick(ctx context.Context, groupID, userID int64) error {
	_, err := c.Call(ctx, "set_group_kick", map[string]any{"group_id": groupID, "user_id": userID, "reject_add_request": false})
	return err
}

// SetGroupSpecialTitle sets a member's special title. Requires the owner role.
func (c *Client) SetGroupSpecialTitle(ctx context.Context, groupID, userID int64, title string) error {
	_, err := c.Call(ctx, "set_group_special_title", map[string]any{"group_id": groupID, "user_id": userID, "special_title": title, "duration": -1})
	return err
}
