package gemini

import (
	"encoding/json"

	"google.golang.org/genai"

	"github.com/edgard/bymbot/internal/llm"
)

func functionDeclarations(tools []llm.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  convertSchema(t.Parameters()),
		})
	}
	return decls
}

var schemaTypes = map[string]genai.Type{
	llm.TypeObject:  genai.TypeObject,
	llm.TypeString:  genai.TypeString,
	llm.TypeInteger: genai.TypeInteger,
	llm.TypeNumber:  genai.TypeNumber,
	llm.TypeBoolean: genai.TypeBoolean,
	llm.TypeArray:   genai.TypeArray,
}

func convertSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       convertSchema(s.Items),
	}
	// Gemini rejects object schemas without properties.
	if s.Type == llm.TypeObject && len(s.Properties) == 0 {
		return nil
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = convertSchema(p)
		}
	}
	return out
}

func marshalArgs(args map[string]any) (json.RawMessage, error) {
	if len(args) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(args)
}
