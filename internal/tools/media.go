package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/llm"
)

const avatarURL = "https://q1.qlogo.cn/g?b=qq&s=0&nk="

// AvatarURL returns the public QQ avatar address of userID.
func AvatarURL(userID int64) string {
	return avatarURL + strconv.FormatInt(userID, 10)
}

// SendAvatarTool posts a member's avatar to the group.
type SendAvatarTool struct {
	admin GroupAdmin
	msg   *bym.Message
}

func (t *SendAvatarTool) Name() string { return "sendAvatar" }

func (t *SendAvatarTool) Description() string {
	return "Useful when you want to send the user's avatar(头像) picture to the group"
}

func (t *SendAvatarTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"qq": llm.String("要发头像的人的qq号，默认为聊天对象"),
	})
}

func (t *SendAvatarTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	qq := argInt(args, "qq", t.msg.SenderID)
	if err := t.admin.SendImage(ctx, t.msg.GroupID, AvatarURL(qq)); err != nil {
		return "", fmt.Errorf("failed to send avatar: %w", err)
	}
	return fmt.Sprintf("the avatar of %d has been sent", qq), nil
}

// SendPictureTool posts pictures by URL.
type SendPictureTool struct {
	admin GroupAdmin
	msg   *bym.Message
}

func (t *SendPictureTool) Name() string { return "sendPicture" }

func (t *SendPictureTool) Description() string {
	return "Useful when you want to send one or more pictures to the group by their urls"
}

func (t *SendPictureTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"urls": llm.ArrayOf(llm.String("picture url"), "the picture urls, http or https"),
	}, "urls")
}

func (t *SendPictureTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var p struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	sent := 0
	for _, raw := range p.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if err := t.admin.SendImage(ctx, t.msg.GroupID, u.String()); err != nil {
			return "", fmt.Errorf("failed to send picture %d: %w", sent+1, err)
		}
		sent++
	}
	if sent == 0 {
		return "no valid picture url was given", nil
	}
	return fmt.Sprintf("%d pictures have been sent", sent), nil
}
