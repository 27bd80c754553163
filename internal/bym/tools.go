package bym

import (
	"context"

	"github.com/edgard/bymbot/internal/llm"
)

// ToolFactory binds a tool to the message it will act on.
type ToolFactory func(msg *Message) llm.Tool

// ToolCatalog lists the tools offered to the model by privilege tier.
type ToolCatalog struct {
	// Base tools are always offered.
	Base []ToolFactory
	// Admin tools are offered when the bot is an admin or the owner.
	Admin []ToolFactory
	// Owner tools are offered only when the bot owns the group.
	Owner []ToolFactory
}

// Build returns the tool set for msg, in Base, Admin, Owner order.
func (c ToolCatalog) Build(msg *Message) []llm.Tool {
	tools := make([]llm.Tool, 0, len(c.Base)+len(c.Admin)+len(c.Owner))
	add := func(factories []ToolFactory) {
		for _, f := range factories {
			if t := f(msg); t != nil {
				tools = append(tools, t)
			}
		}
	}
	add(c.Base)
	if msg.BotRole.Privileged() {
		add(c.Admin)
	}
	if msg.BotRole == RoleOwner {
		add(c.Owner)
	}
	return tools
}

// ImageNamer is the optional image-naming tool. Besides being callable by
// the model it contributes a prompt fragment and may claim reply segments
// (such as a sticker naming directive) before they are sent.
type ImageNamer interface {
	llm.Tool
	PromptFragment(ctx context.Context, msg *Message) string
	ClaimSegment(ctx context.Context, msg *Message, seg string) (bool, error)
}

// ImageNamerFactory binds an ImageNamer to a message.
type ImageNamerFactory func(msg *Message) ImageNamer
