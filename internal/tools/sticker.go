package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/database"
	"github.com/edgard/bymbot/internal/llm"
)

// maxListedStickers bounds how many names the prompt fragment advertises.
const maxListedStickers = 50

// StickerStore persists named stickers.
type StickerStore interface {
	SaveSticker(ctx context.Context, sticker *database.Sticker) error
	GetStickerByName(ctx context.Context, name string) (*database.Sticker, error)
	ListStickerNames(ctx context.Context) ([]string, error)
}

// SendStickerTool posts a previously named sticker.
type SendStickerTool struct {
	admin    GroupAdmin
	stickers StickerStore
	msg      *bym.Message
}

func (t *SendStickerTool) Name() string { return "sendSticker" }

func (t *SendStickerTool) Description() string {
	return "Useful when you want to send a saved sticker(表情包) to the group by its name"
}

func (t *SendStickerTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"name": llm.String("the sticker name"),
	}, "name")
}

func (t *SendStickerTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	name := argString(args, "name")
	if name == "" {
		return "", errors.New("name is required")
	}
	s, err := t.stickers.GetStickerByName(ctx, name)
	if err != nil {
		return "", err
	}
	if s == nil {
		return fmt.Sprintf("no sticker named %s", name), nil
	}
	if len(s.ImageData) > 0 {
		err = t.admin.SendImageData(ctx, t.msg.GroupID, &llm.Image{Data: s.ImageData, MIMEType: s.MIMEType})
	} else {
		err = t.admin.SendImage(ctx, t.msg.GroupID, s.ImageURL)
	}
	if err != nil {
		return "", fmt.Errorf("failed to send sticker: %w", err)
	}
	return fmt.Sprintf("sticker %s has been sent", name), nil
}

// StickerNamer names the image of an unaddressed picture message. The model
// either calls it directly or writes a naming directive into its reply, which
// the dispatcher hands to ClaimSegment instead of sending.
type StickerNamer struct {
	stickers StickerStore
	images   bym.ImageFetcher
	msg      *bym.Message
	log      *slog.Logger
}

// NewImageNamerFactory returns a factory binding a StickerNamer to each
// message. Messages without images get no namer. images downloads the picture
// when it is named, since the link it arrived with may expire.
func NewImageNamerFactory(stickers StickerStore, images bym.ImageFetcher, log *slog.Logger) bym.ImageNamerFactory {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "sticker_namer")
	return func(msg *bym.Message) bym.ImageNamer {
		if len(msg.Images) == 0 {
			return nil
		}
		return &StickerNamer{stickers: stickers, images: images, msg: msg, log: log}
	}
}

func (n *StickerNamer) Name() string { return "nameSticker" }

func (n *StickerNamer) Description() string {
	return "Useful when you want to save the picture in the current message as a sticker(表情包) under a short name"
}

func (n *StickerNamer) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"name": llm.String("a short name describing the sticker"),
	}, "name")
}

func (n *StickerNamer) Call(ctx context.Context, args json.RawMessage) (string, error) {
	name := argString(args, "name")
	if name == "" {
		return "", errors.New("name is required")
	}
	if err := n.save(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("the sticker has been saved as %s", name), nil
}

// PromptFragment lists the names already in use so the model avoids clashes.
func (n *StickerNamer) PromptFragment(ctx context.Context, _ *bym.Message) string {
	names, err := n.stickers.ListStickerNames(ctx)
	if err != nil {
		n.log.WarnContext(ctx, "Failed to list sticker names", "error", err)
		return ""
	}
	if len(names) > maxListedStickers {
		names = names[len(names)-maxListedStickers:]
	}
	if len(names) == 0 {
		return "当前还没有已命名的表情包。"
	}
	return "已有的表情包名称：" + strings.Join(names, "、") + "。请不要使用重复的名称。"
}

// ClaimSegment consumes a naming directive segment and saves the sticker.
func (n *StickerNamer) ClaimSegment(ctx context.Context, _ *bym.Message, seg string) (bool, error) {
	name, ok := bym.ParseNamingDirective(seg)
	if !ok {
		return false, nil
	}
	return true, n.save(ctx, name)
}

func (n *StickerNamer) save(ctx context.Context, name string) error {
	if len(n.msg.Images) == 0 {
		return errors.New("message has no image to name")
	}
	ref := n.msg.Images[0]
	img, err := n.images.FetchImage(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to download sticker %q: %w", name, err)
	}
	s := &database.Sticker{
		Name:      name,
		ImageURL:  ref,
		ImageData: img.Data,
		MIMEType:  img.MIMEType,
		ChatID:    n.msg.GroupID,
		UserID:    n.msg.SenderID,
	}
	if err := n.stickers.SaveSticker(ctx, s); err != nil {
		return fmt.Errorf("failed to save sticker %q: %w", name, err)
	}
	n.log.InfoContext(ctx, "Sticker named", "name", name, "chat_id", n.msg.GroupID)
	return nil
}
