// Package llm defines the provider-neutral contract between the response
// engine, the tools it exposes, and the model backends (Gemini, OpenAI).
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Model generates one reply for a request, running tool calls as needed.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single system-prompted, single-turn model call.
type Request struct {
	System          string
	Text            string
	Image           *Image
	Temperature     float32
	MaxOutputTokens int
	Tools           []Tool
}

// Response carries the final model text. Text may be empty.
type Response struct {
	Text      string
	ToolCalls int
}

// Image is an inline image attached to the user turn.
type Image struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

// Tool is a capability the model may call during generation.
type Tool interface {
	Name() string
	Description() string
	Parameters() *Schema
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// FindTool returns the tool named name, or nil.
func FindTool(tools []Tool, name string) Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// RunTool executes the named tool and always returns text suitable for a tool
// result: failures are reported to the model instead of aborting generation.
func RunTool(ctx context.Context, tools []Tool, name string, args json.RawMessage) string {
	t := FindTool(tools, name)
	if t == nil {
		return fmt.Sprintf("error: unknown tool %q", name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := t.Call(ctx, args)
	if err != nil {
		return "error: " + err.Error()
	}
	return out
}
