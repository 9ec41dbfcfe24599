package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/railflow/flow"
)

// document mirrors the raw configuration file.
type document struct {
	Prompts    map[string]definitionDoc `mapstructure:"prompts"`
	Functions  map[string]definitionDoc `mapstructure:"functions"`
	Actions    map[string]any           `mapstructure:"actions"`
	Conditions map[string]any           `mapstructure:"conditions"`
	Flows      map[string]any           `mapstructure:"flows"`
	Rails      *railsDoc                `mapstructure:"rails"`
	Generation map[string]any           `mapstructure:"generation"`
}

// definitionDoc is a prompts or functions entry.
type definitionDoc struct {
	Task   string         `mapstructure:"task" validate:"required"`
	Source string         `mapstructure:"source"`
	Params map[string]any `mapstructure:"params"`
}

// taskDoc is an action or condition, named or inline.
type taskDoc struct {
	Type   string         `mapstructure:"type" validate:"required,oneof=prompt function"`
	Task   string         `mapstructure:"task" validate:"required"`
	Params map[string]any `mapstructure:"params"`
}

// flowDoc is a flow, named or inline. Action is a name, an inline task or
// a mapping of outcomes to either. Condition is nil, a name or an inline
// task.
type flowDoc struct {
	Action    any `mapstructure:"action"`
	Condition any `mapstructure:"condition"`
}

type railsDoc struct {
	Input  railDoc `mapstructure:"input"`
	Output railDoc `mapstructure:"output"`
}

// railDoc lists flow names or single-key {name: flow} mappings.
type railDoc struct {
	Flows []any `mapstructure:"flows"`
}

var validate = validator.New()

// Load reads and resolves a configuration file. Files ending in .json are
// decoded as JSON, everything else as YAML.
func Load(path string) (*Config, error) {
	doc, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return FromMap(doc)
}

// Parse resolves a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	doc, err := parseYAML(data)
	if err != nil {
		return nil, err
	}
	return FromMap(doc)
}

// ParseRails resolves only the rails section of a YAML document. All flows
// must be given inline; their actions and conditions must be inline too.
func ParseRails(data []byte) (*flow.Rails, error) {
	raw, err := parseYAML(data)
	if err != nil {
		return nil, err
	}
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return (&builder{cfg: newConfig()}).rails(doc.Rails)
}

// FromMap resolves an already decoded document. Non-string mapping keys,
// such as YAML's unquoted True, are converted to strings first.
func FromMap(raw map[string]any) (*Config, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return build(doc)
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &Error{Message: "failed to parse JSON", Err: err}
		}
		return doc, nil
	}
	return parseYAML(data)
}

func parseYAML(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: "failed to parse YAML", Err: err}
	}
	return doc, nil
}

func decode(raw map[string]any) (*document, error) {
	if raw == nil {
		return nil, &Error{Section: "rails", Message: errMissingRails}
	}
	normalized, _ := normalize(raw).(map[string]any)
	if normalized["rails"] == nil {
		return nil, &Error{Section: "rails", Message: errMissingRails}
	}

	var doc document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(normalized); err != nil {
		return nil, &Error{Message: "invalid document", Err: err}
	}
	return &doc, nil
}

// normalize converts every map[any]any in v into a map[string]any.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// decodeInto decodes an inline mapping into a document struct and
// validates it.
func decodeInto(section, name string, raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return &Error{Section: section, Name: name, Message: "invalid entry", Err: err}
	}
	return validateEntry(section, name, out)
}

func validateEntry(section, name string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Error{Section: section, Name: name, Message: "invalid entry", Err: err}
	}
	fe := fieldErrs[0]
	msg := fmt.Sprintf("field %q failed %q", strings.ToLower(fe.Field()), fe.Tag())
	if fe.Tag() == "oneof" {
		msg = fmt.Sprintf("field %q must be one of [%s], got %q", strings.ToLower(fe.Field()), fe.Param(), fmt.Sprint(fe.Value()))
	}
	return &Error{Section: section, Name: name, Message: msg}
}
