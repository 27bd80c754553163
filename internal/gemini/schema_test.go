package gemini

import (
	"context"
	"encoding/json"
	"testing"

	"google.golang.org/genai"

	"github.com/edgard/bymbot/internal/llm"
)

type stubTool struct{ params *llm.Schema }

func (stubTool) Name() string { return "jinyan" }
func (stubTool) Description() string { return "mute a member" }
func (s stubTool) Parameters() *llm.Schema { return s.params }
func (stubTool) Call(context.Context, json.RawMessage) (string, error) { return "", nil }

func TestFunctionDeclarations(t *testing.T) {
	t.Parallel()

	params := llm.Object(map[string]*llm.Schema{
		"qq":   llm.String("target user id"),
		"time": llm.Integer("seconds"),
		"tags": llm.ArrayOf(llm.String(""), "labels"),
	}, "qq")
	decls := functionDeclarations([]llm.Tool{stubTool{params: params}})
	if len(decls) != 1 {
		t.Fatalf("len(decls) = %d, want 1", len(decls))
	}
	d := decls[0]
	if d.Name != "jinyan" || d.Parameters == nil {
		t.Fatalf("decl = %+v, want named declaration with parameters", d)
	}
	if d.Parameters.Type != genai.TypeObject {
		t.Errorf("Type = %v, want %v", d.Parameters.Type, genai.TypeObject)
	}
	if got := d.Parameters.Properties["time"].Type; got != genai.TypeInteger {
		t.Errorf("time Type = %v, want %v", got, genai.TypeInteger)
	}
	if got := d.Parameters.Properties["tags"].Items.Type; got != genai.TypeString {
		t.Errorf("tags item Type = %v, want %v", got, genai.TypeString)
	}
	if len(d.Parameters.Required) != 1 || d.Parameters.Required[0] != "qq" {
		t.Errorf("Required = %v, want [qq]", d.Parameters.Required)
	}
}

func TestConvertSchemaEmptyObject(t *testing.T) {
	t.Parallel()

	if got := convertSchema(llm.Object(nil)); got != nil {
		t.Errorf("convertSchema(empty object) = %+v, want nil", got)
	}
}

func TestMarshalArgs(t *testing.T) {
	t.Parallel()

	got, err := marshalArgs(nil)
	if err != nil || string(got) != "{}" {
		t.Errorf("marshalArgs(nil) = %s, %v, want {}", got, err)
	}
	got, err = marshalArgs(map[string]any{"qq": "123"})
	if err != nil || string(got) != `{"qq":"123"}` {
		t.Errorf("marshalArgs() = %s, %v", got, err)
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	cfg := buildConfig(&llm.Request{System: "sys", Temperature: 1, MaxOutputTokens: 500})
	if cfg.Temperature == nil || *cfg.Temperature != 1 {
		t.Errorf("Temperature = %v, want 1", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 500 {
		t.Errorf("MaxOutputTokens = %d, want 500", cfg.MaxOutputTokens)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Error("SystemInstruction not set")
	}
	if len(cfg.Tools) != 0 {
		t.Errorf("Tools = %d, want 0 without tools", len(cfg.Tools))
	}
}

func TestWithoutTools(t *testing.T) {
	t.Parallel()

	params := llm.Object(map[string]*llm.Schema{"qq": llm.String("target user id")}, "qq")
	cfg := buildConfig(&llm.Request{Temperature: 1, Tools: []llm.Tool{stubTool{params: params}}})
	if len(cfg.Tools) != 1 {
		t.Fatalf("Tools = %d, want 1", len(cfg.Tools))
	}

	last := withoutTools(cfg)
	if len(last.Tools) != 0 || last.ToolConfig != nil {
		t.Errorf("withoutTools() Tools = %d, want 0", len(last.Tools))
	}
	if len(cfg.Tools) != 1 {
		t.Errorf("original Tools = %d after withoutTools(), want 1", len(cfg.Tools))
	}
	if last.Temperature != cfg.Temperature {
		t.Error("withoutTools() dropped Temperature")
	}
}

func TestRetriable(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{429: true, 500: true, 503: true, 400: false, 404: false} {
		if got := retriable(code); got != want {
			t.Errorf("retriable(%d) = %v, want %v", code, got, want)
		}
	}
}
