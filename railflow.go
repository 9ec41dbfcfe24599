// Package railflow provides a high-level façade over config loading and the
// flow engine. Most applications interact with this package by:
//  1. Registering the functions their configuration refers to
//  2. Loading a configuration file via Load (or building one with config.Parse)
//  3. Running the input or output rail with GenerateInput / GenerateOutput
//
// Default generation options from the configuration's generation section are
// merged under the options of each call.
package railflow

import (
	"context"

	"github.com/hupe1980/railflow/config"
	"github.com/hupe1980/railflow/engine"
	"github.com/hupe1980/railflow/flow"
	"github.com/hupe1980/railflow/function"
	"github.com/hupe1980/railflow/logging"
	"github.com/hupe1980/railflow/model"
)

// GenerateOptions are the per-call inputs of a rail run.
type GenerateOptions = engine.GenerateOptions

// Options configures a Railflow instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Renderer and ImageEncoder replace the engine defaults when set.
	Renderer     engine.Renderer
	ImageEncoder engine.ImageEncoder

	// StrictTemplates fails prompt rendering on missing params.
	StrictTemplates bool
}

// Railflow binds a resolved configuration to an engine.
type Railflow struct {
	cfg    *config.Config
	engine *engine.Engine
}

// New creates a Railflow for cfg. m serves prompt tasks and fns function
// tasks; either may be nil when the configuration does not use it.
func New(cfg *config.Config, m model.Model, fns *function.Registry, optFns ...func(o *Options)) *Railflow {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(m, fns, func(o *engine.Options) {
		o.Logger = logging.With(opts.Logger, "component", "railflow")
		o.Renderer = opts.Renderer
		o.ImageEncoder = opts.ImageEncoder
		o.StrictTemplates = opts.StrictTemplates
	})

	return &Railflow{cfg: cfg, engine: e}
}

// Load reads the configuration file at path and creates a Railflow for it.
func Load(path string, m model.Model, fns *function.Registry, optFns ...func(o *Options)) (*Railflow, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, m, fns, optFns...), nil
}

// Config returns the resolved configuration.
func (r *Railflow) Config() *config.Config { return r.cfg }

// Engine returns the underlying engine.
func (r *Railflow) Engine() *engine.Engine { return r.engine }

// GenerateInput runs the input rail.
func (r *Railflow) GenerateInput(ctx context.Context, opts GenerateOptions) (string, error) {
	return r.Generate(ctx, r.cfg.Rails.Input, opts)
}

// GenerateOutput runs the output rail.
func (r *Railflow) GenerateOutput(ctx context.Context, opts GenerateOptions) (string, error) {
	return r.Generate(ctx, r.cfg.Rails.Output, opts)
}

// GenerateFlow runs the single named flow from the flows section.
func (r *Railflow) GenerateFlow(ctx context.Context, name string, opts GenerateOptions) (string, error) {
	f, ok := r.cfg.Flows[name]
	if !ok {
		return "", &flow.ReferenceError{Kind: "flow", Name: name}
	}
	table := flow.NewFlowTable()
	table.Add(name, f)
	return r.Generate(ctx, table, opts)
}

// Generate runs an arbitrary flow table with the configuration's default
// generation options.
func (r *Railflow) Generate(ctx context.Context, flows *flow.FlowTable, opts GenerateOptions) (string, error) {
	opts.Generation = r.cfg.Generation.Merge(opts.Generation)
	return r.engine.Generate(ctx, flows, opts)
}
