package primitives

import "strings"

// ParamConfig is a name bound to a literal value, a location lookup or an expression.
// Value wins over Location, Location wins over Expr.
type ParamConfig struct {
	Name     string `json:"name" yaml:"name"`
	Expr     string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// DataConfig declares a datamodel variable initialised at start.
type DataConfig struct {
	ID    string `json:"id" yaml:"id"`
	Expr  string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// InvokeConfig declares an external service started while its state is active.
type InvokeConfig struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	IDLocation  string         `json:"idlocation,omitempty" yaml:"idlocation,omitempty"`
	Type        string         `json:"type,omitempty" yaml:"type,omitempty"`
	Src         string         `json:"src,omitempty" yaml:"src,omitempty"`
	SrcExpr     string         `json:"srcexpr,omitempty" yaml:"srcexpr,omitempty"`
	Content     any            `json:"content,omitempty" yaml:"content,omitempty"`
	Params      []ParamConfig  `json:"params,omitempty" yaml:"params,omitempty"`
	Namelist    []string       `json:"namelist,omitempty" yaml:"namelist,omitempty"`
	AutoForward bool           `json:"autoforward,omitempty" yaml:"autoforward,omitempty"`
	Finalize    []ActionConfig `json:"finalize,omitempty" yaml:"finalize,omitempty"`
}

// DefaultInvokeType is used when an invoke declares no type.
const DefaultInvokeType = "scxml"

// InvokeType returns the declared type or the default.
func (i *InvokeConfig) InvokeType() string {
	if t := strings.TrimSpace(i.Type); t != "" {
		return t
	}
	return DefaultInvokeType
}

// Validate checks mutually exclusive attributes.
func (i *InvokeConfig) Validate() error {
	if i.ID != "" && i.IDLocation != "" {
		return CloneError(ErrInvalidConfig, "invoke cannot declare both id and idlocation", nil, nil)
	}
	if i.Src != "" && i.SrcExpr != "" {
		return CloneError(ErrInvalidConfig, "invoke cannot declare both src and srcexpr", nil, nil)
	}
	if (i.Src != "" || i.SrcExpr != "") && i.Content != nil {
		return CloneError(ErrInvalidConfig, "invoke cannot declare both src and content", nil, nil)
	}
	for _, p := range i.Params {
		if strings.TrimSpace(p.Name) == "" {
			return CloneError(ErrInvalidConfig, "invoke param requires a name", nil, nil)
		}
	}
	return ValidateActions(i.Finalize)
}
