package llm

// JSON schema type names used in tool parameter definitions.
const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

// Schema is the subset of JSON schema both backends understand.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Object builds an object schema from its properties and required names.
func Object(props map[string]*Schema, required ...string) *Schema {
	if props == nil {
		props = map[string]*Schema{}
	}
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// String builds a string property.
func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

// Integer builds an integer property.
func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// Boolean builds a boolean property.
func Boolean(description string) *Schema {
	return &Schema{Type: TypeBoolean, Description: description}
}

// ArrayOf builds an array property whose elements follow items.
func ArrayOf(items *Schema, description string) *Schema {
	return &Schema{Type: TypeArray, Items: items, Description: description}
}
