package fields

// Type is the closed set of field types a service schema may declare.
type Type string

const (
	TypeText        Type = "text"
	TypeNumber      Type = "number"
	TypeDate        Type = "date"
	TypeTime        Type = "time"
	TypeDateTime    Type = "datetime"
	TypeEmail       Type = "email"
	TypePhone       Type = "phone"
	TypeSelect      Type = "select"
	TypeMultiSelect Type = "multiselect"
	TypeBoolean     Type = "boolean"
	TypeAddress     Type = "address"
	TypeTextArea    Type = "textarea"
)

// Rule holds the optional validation constraints of a field definition.
type Rule struct {
	Pattern   string   `mapstructure:"pattern" json:"pattern,omitempty"`
	Min       *float64 `mapstructure:"min" json:"min,omitempty"`
	Max       *float64 `mapstructure:"max" json:"max,omitempty"`
	MinLength int      `mapstructure:"min_length" json:"minLength,omitempty"`
	MaxLength int      `mapstructure:"max_length" json:"maxLength,omitempty"`
	Options   []string `mapstructure:"options" json:"options,omitempty"`
}

// Definition describes one typed field a service collects.
type Definition struct {
	Name     string `mapstructure:"name" json:"name"`
	Label    string `mapstructure:"label" json:"label"`
	Type     Type   `mapstructure:"type" json:"type"`
	Required bool   `mapstructure:"required" json:"required"`
	Rule     Rule   `mapstructure:"validation" json:"validation"`
	Prompt   string `mapstructure:"prompt" json:"prompt,omitempty"`
	Order    int    `mapstructure:"order" json:"order"`
}

// DisplayLabel falls back to the field name when no label is configured.
func (d Definition) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}
