package model

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Options are per-call generation parameters. Nil or empty fields leave the
// provider adapter's defaults in place.
type Options struct {
	Model       string   `mapstructure:"model" json:"model,omitempty"`
	Temperature *float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	MaxTokens   *int64   `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
	TopP        *float64 `mapstructure:"top_p" json:"top_p,omitempty"`
	Seed        *int64   `mapstructure:"seed" json:"seed,omitempty"`
	Stop        []string `mapstructure:"stop" json:"stop,omitempty"`
}

// Merge returns o overlaid with every field set in other.
func (o Options) Merge(other Options) Options {
	if other.Model != "" {
		o.Model = other.Model
	}
	if other.Temperature != nil {
		o.Temperature = other.Temperature
	}
	if other.MaxTokens != nil {
		o.MaxTokens = other.MaxTokens
	}
	if other.TopP != nil {
		o.TopP = other.TopP
	}
	if other.Seed != nil {
		o.Seed = other.Seed
	}
	if len(other.Stop) > 0 {
		o.Stop = other.Stop
	}
	return o
}

// OptionsFromMap decodes a generation-params mapping such as
// {"model": "gpt-4o-mini", "temperature": 0, "max_tokens": 512}.
// Numbers may be given as ints or floats and a single stop string is
// accepted in place of a list. Unknown keys are ignored.
func OptionsFromMap(m map[string]any) (Options, error) {
	var opts Options
	if len(m) == 0 {
		return opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(m); err != nil {
		return Options{}, fmt.Errorf("invalid generation options: %w", err)
	}
	return opts, nil
}

// Float returns a pointer to v, for building Options literals.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Options literals.
func Int(v int64) *int64 { return &v }
