// Package tools implements the capabilities the response engine offers to the
// model: web search and page reading, weather, image sending, group moderation
// and sticker naming.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/llm"
)

// GroupAdmin performs host-side group actions on behalf of the tools.
type GroupAdmin interface {
	SetCard(ctx context.Context, groupID, userID int64, card string) error
	Mute(ctx context.Context, groupID, userID int64, d time.Duration) error
	Kick(ctx context.Context, groupID, userID int64) error
	SetTitle(ctx context.Context, groupID, userID int64, title string) error
	SendImage(ctx context.Context, groupID int64, ref string) error
	// SendImageData uploads img itself rather than a link to it.
	SendImageData(ctx context.Context, groupID int64, img *llm.Image) error
}

// Deps are the collaborators shared by all tools.
type Deps struct {
	Config     config.ToolsConfig
	HTTPClient *http.Client
	// Summarizer answers search queries; usually the same model as the engine.
	Summarizer llm.Model
	Admin      GroupAdmin
	Stickers   StickerStore
	Logger     *slog.Logger
}

// Catalog returns the tool catalog for one host. Moderation tools are only
// present when deps.Admin is set.
func Catalog(deps Deps) bym.ToolCatalog {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: deps.Config.HTTPTimeout}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "tools")

	website := &WebsiteTool{client: client, maxChars: deps.Config.WebsiteMaxChars}
	weather := &WeatherTool{client: client, baseURL: deps.Config.WeatherBaseURL}

	var c bym.ToolCatalog
	c.Base = append(c.Base,
		static(website),
		static(weather),
	)
	if deps.Summarizer != nil {
		search := &SearchTool{model: deps.Summarizer, website: website, sentences: deps.Config.SearchSentences, log: log}
		c.Base = append(c.Base, static(search))
	}
	if deps.Admin == nil {
		return c
	}

	c.Base = append(c.Base,
		func(msg *bym.Message) llm.Tool { return &SendAvatarTool{admin: deps.Admin, msg: msg} },
		func(msg *bym.Message) llm.Tool { return &SendPictureTool{admin: deps.Admin, msg: msg} },
	)
	if deps.Stickers != nil {
		c.Base = append(c.Base, func(msg *bym.Message) llm.Tool {
			return &SendStickerTool{admin: deps.Admin, stickers: deps.Stickers, msg: msg}
		})
	}
	c.Admin = append(c.Admin,
		func(msg *bym.Message) llm.Tool { return &EditCardTool{admin: deps.Admin, msg: msg, log: log} },
		func(msg *bym.Message) llm.Tool { return &JinyanTool{admin: deps.Admin, msg: msg, log: log} },
		func(msg *bym.Message) llm.Tool { return &KickOutTool{admin: deps.Admin, msg: msg, log: log} },
	)
	c.Owner = append(c.Owner,
		func(msg *bym.Message) llm.Tool { return &SetTitleTool{admin: deps.Admin, msg: msg, log: log} },
	)
	return c
}

func static(t llm.Tool) bym.ToolFactory {
	return func(*bym.Message) llm.Tool { return t }
}

// argInt reads an integer argument that the model may send as a number or a
// numeric string. Missing or malformed values yield def.
func argInt(args json.RawMessage, key string, def int64) int64 {
	r := gjson.GetBytes(args, key)
	switch r.Type {
	case gjson.Number:
		return r.Int()
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		v := gjson.Parse(s)
		if s == "" || v.Type != gjson.Number {
			return def
		}
		return v.Int()
	default:
		return def
	}
}

func argString(args json.RawMessage, key string) string {
	return strings.TrimSpace(gjson.GetBytes(args, key).String())
}

// target resolves the user an action applies to. Members may only act on
// themselves; admins and the owner may act on anyone.
func target(msg *bym.Message, args json.RawMessage) (int64, error) {
	id := argInt(args, "qq", msg.SenderID)
	if id != msg.SenderID && !msg.SenderRole.Privileged() {
		return 0, fmt.Errorf("the user %d is not an admin and can only do this to themselves", msg.SenderID)
	}
	return id, nil
}
