package chartx

import (
	"bytes"
	"fmt"
	"os"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/comalice/chartx/internal/primitives"
)

// ErrDecode is returned when a chart document cannot be read or decoded.
var ErrDecode = goerrors.New("cannot decode chart document", goerrors.CategoryBadInput).
	WithTextCode("DECODE_ERROR")

// LoadFile reads a YAML or JSON chart document and compiles it.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, primitives.CloneError(ErrDecode, fmt.Sprintf("read %s: %s", path, err), err,
			map[string]any{"path": path})
	}
	doc, err := Load(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Load decodes and compiles a YAML or JSON chart document.
func Load(data []byte) (*Document, error) {
	cfg, err := DecodeConfig(data)
	if err != nil {
		return nil, err
	}
	return Compile(cfg)
}

// DecodeConfig decodes a YAML or JSON chart document without compiling it.
// Unknown fields are rejected.
func DecodeConfig(data []byte) (*DocumentConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg DocumentConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, primitives.CloneError(ErrDecode, err.Error(), err, nil)
	}
	return &cfg, nil
}

// EncodeConfig renders a document as YAML.
func EncodeConfig(cfg *DocumentConfig) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, primitives.CloneError(ErrDecode, err.Error(), err, nil)
	}
	return out, nil
}
