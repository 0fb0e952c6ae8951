package state

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format names an on-disk encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts json, yaml, yml or toml in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown state format %q", s)
	}
}

type codec interface {
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
	ext() string
}

func codecFor(f Format) (codec, error) {
	switch f {
	case FormatJSON:
		return jsonCodec{}, nil
	case FormatYAML:
		return yamlCodec{}, nil
	case FormatTOML:
		return tomlCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown state format %q", f)
	}
}

type jsonCodec struct{}

func (jsonCodec) marshal(v any) ([]byte, error)      { return sonic.ConfigStd.MarshalIndent(v, "", "  ") }
func (jsonCodec) unmarshal(data []byte, v any) error { return sonic.Unmarshal(data, v) }
func (jsonCodec) ext() string                        { return ".json" }

type yamlCodec struct{}

func (yamlCodec) marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }
func (yamlCodec) ext() string                        { return ".yaml" }

type tomlCodec struct{}

func (tomlCodec) marshal(v any) ([]byte, error)      { return toml.Marshal(v) }
func (tomlCodec) unmarshal(data []byte, v any) error { return toml.Unmarshal(data, v) }
func (tomlCodec) ext() string                        { return ".toml" }
