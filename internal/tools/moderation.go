package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/llm"
)

const maxMute = 30 * 24 * time.Hour

// EditCardTool changes a member's group card.
type EditCardTool struct {
	admin GroupAdmin
	msg   *bym.Message
	log   *slog.Logger
}

func (t *EditCardTool) Name() string { return "editCard" }

func (t *EditCardTool) Description() string {
	return "Useful when you want to edit someone's card in the group(群名片)"
}

func (t *EditCardTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"qq":   llm.String("你想改名片的那个人的qq号，默认为聊天对象"),
		"card": llm.String("the new card"),
	}, "card")
}

func (t *EditCardTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	card := argString(args, "card")
	if card == "" {
		return "", errors.New("card is required")
	}
	qq, err := target(t.msg, args)
	if err != nil {
		return err.Error(), nil
	}
	if err := t.admin.SetCard(ctx, t.msg.GroupID, qq, card); err != nil {
		return "", fmt.Errorf("failed to set card: %w", err)
	}
	t.log.InfoContext(ctx, "Card edited", "chat_id", t.msg.GroupID, "user_id", qq)
	return fmt.Sprintf("the user %d's card has been changed into %s", qq, card), nil
}

// JinyanTool mutes a member, or lifts a mute when time is 0.
type JinyanTool struct {
	admin GroupAdmin
	msg   *bym.Message
	log   *slog.Logger
}

func (t *JinyanTool) Name() string { return "jinyan" }

func (t *JinyanTool) Description() string {
	return "Useful when you want to ban(禁言) someone in the group. Set time to 0 to lift the ban."
}

func (t *JinyanTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"qq":   llm.String("你想禁言的那个人的qq号，默认为聊天对象"),
		"time": llm.Integer("禁言时长，单位为秒，0表示解除禁言，默认600"),
	})
}

func (t *JinyanTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	qq, err := target(t.msg, args)
	if err != nil {
		return err.Error(), nil
	}
	secs := max(argInt(args, "time", 600), 0)
	d := min(time.Duration(secs)*time.Second, maxMute)
	if err := t.admin.Mute(ctx, t.msg.GroupID, qq, d); err != nil {
		return "", fmt.Errorf("failed to mute: %w", err)
	}
	t.log.InfoContext(ctx, "Member muted", "chat_id", t.msg.GroupID, "user_id", qq, "duration", d)
	if d == 0 {
		return fmt.Sprintf("the user %d has been unmuted", qq), nil
	}
	return fmt.Sprintf("the user %d has been muted for %d seconds", qq, int64(d/time.Second)), nil
}

// KickOutTool removes a member from the group.
type KickOutTool struct {
	admin GroupAdmin
	msg   *bym.Message
	log   *slog.Logger
}

func (t *KickOutTool) Name() string { return "kickOut" }

func (t *KickOutTool) Description() string {
	return "Useful when you want to kick someone out of the group(踢出群聊)"
}

func (t *KickOutTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"qq": llm.String("你想踢出的那个人的qq号"),
	}, "qq")
}

func (t *KickOutTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	qq, err := target(t.msg, args)
	if err != nil {
		return err.Error(), nil
	}
	if err := t.admin.Kick(ctx, t.msg.GroupID, qq); err != nil {
		return "", fmt.Errorf("failed to kick: %w", err)
	}
	t.log.InfoContext(ctx, "Member kicked", "chat_id", t.msg.GroupID, "user_id", qq)
	return fmt.Sprintf("the user %d has been kicked out of group %d", qq, t.msg.GroupID), nil
}

// SetTitleTool sets a member's special title. Only group owners can do this.
type SetTitleTool struct {
	admin GroupAdmin
	msg   *bym.Message
	log   *slog.Logger
}

func (t *SetTitleTool) Name() string { return "setTitle" }

func (t *SetTitleTool) Description() string {
	return "Useful when you want to give someone a title in the group(群头衔)"
}

func (t *SetTitleTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"qq":    llm.String("你想修改头衔的那个人的qq号，默认为聊天对象"),
		"title": llm.String("the new title, at most 6 characters"),
	}, "title")
}

func (t *SetTitleTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	title := argString(args, "title")
	qq, err := target(t.msg, args)
	if err != nil {
		return err.Error(), nil
	}
	if err := t.admin.SetTitle(ctx, t.msg.GroupID, qq, title); err != nil {
		return "", fmt.Errorf("failed to set title: %w", err)
	}
	t.log.InfoContext(ctx, "Title set", "chat_id", t.msg.GroupID, "user_id", qq)
	return fmt.Sprintf("the user %d's title has been changed into %s", qq, title), nil
}
