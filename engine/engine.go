package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/railflow/flow"
	"github.com/hupe1980/railflow/function"
	"github.com/hupe1980/railflow/internal/util"
	"github.com/hupe1980/railflow/logging"
	"github.com/hupe1980/railflow/model"
)

// Task roles carried into logs and errors.
const (
	RoleAction    = "action"
	RoleCondition = "condition"
)

// Renderer fills a prompt template with task params.
type Renderer interface {
	Render(text string, params map[string]any) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(text string, params map[string]any) (string, error)

// Render implements Renderer.
func (f RendererFunc) Render(text string, params map[string]any) (string, error) {
	return f(text, params)
}

// ImageEncoder turns the generation input into an image URL a model accepts.
type ImageEncoder interface {
	Encode(input string) (string, error)
}

// ImageEncoderFunc adapts a function to ImageEncoder.
type ImageEncoderFunc func(input string) (string, error)

// Encode implements ImageEncoder.
func (f ImageEncoderFunc) Encode(input string) (string, error) { return f(input) }

// Options configures an Engine.
type Options struct {
	// Logger receives evaluation events. Defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Renderer renders prompt templates. Defaults to text/template with the
	// sprig function map, where a param missing from the template renders
	// empty.
	Renderer Renderer

	// ImageEncoder encodes the input of prompt tasks. The default passes
	// data:, http: and https: URLs through and reads anything else as an
	// image file, returning a base64 data URL.
	ImageEncoder ImageEncoder

	// StrictTemplates makes the default renderer fail on params missing
	// from a prompt template.
	StrictTemplates bool
}

// Engine executes tasks and evaluates flow tables. It holds no per-call
// state and is safe for concurrent use when its collaborators are.
type Engine struct {
	model     model.Model
	functions *function.Registry
	logger    logging.Logger
	renderer  Renderer
	encoder   ImageEncoder
}

// New creates an Engine. Either collaborator may be nil when the flows it
// runs never need it.
func New(m model.Model, fns *function.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Renderer == nil {
		strict := opts.StrictTemplates
		opts.Renderer = RendererFunc(func(text string, params map[string]any) (string, error) {
			return util.RenderTemplate(text, params, strict)
		})
	}
	if opts.ImageEncoder == nil {
		opts.ImageEncoder = ImageEncoderFunc(encodeImage)
	}

	return &Engine{
		model:     m,
		functions: fns,
		logger:    opts.Logger,
		renderer:  opts.Renderer,
		encoder:   opts.ImageEncoder,
	}
}

func encodeImage(input string) (string, error) {
	for _, prefix := range []string{"data:", "http://", "https://"} {
		if strings.HasPrefix(input, prefix) {
			return input, nil
		}
	}
	return util.EncodeImageFile(input)
}

// GenerateOptions are the per-call inputs of Generate.
type GenerateOptions struct {
	// Generation is passed to the model for every prompt task.
	Generation model.Options

	// ActionParams and ConditionParams override task params for this call
	// only (see flow.ApplyOverrides).
	ActionParams    map[string]any
	ConditionParams map[string]any

	// Input is attached to prompt tasks as an image. Empty means text only.
	Input string
}

// invocation carries the state of one Generate or ExecuteTask call.
type invocation struct {
	id     string
	gen    model.Options
	input  string
	logger logging.Logger

	image   string
	encoded bool
}

func (e *Engine) newInvocation(gen model.Options, input string) *invocation {
	id := uuid.NewString()
	return &invocation{
		id:     id,
		gen:    gen,
		input:  input,
		logger: logging.With(e.logger, "invocation_id", id),
	}
}

// Generate evaluates flows in order against opts.Input and returns the
// output of the first selected action.
//
// The table is cloned before overrides are applied, so the configuration
// shared between calls is never modified. For each flow the condition is
// executed and its trimmed outcome looked up case-insensitively among the
// flow's actions; a flow without a condition always selects its single
// action. A flow whose outcome selects nothing is skipped. Errors from
// executing a task end the evaluation immediately.
func (e *Engine) Generate(ctx context.Context, flows *flow.FlowTable, opts GenerateOptions) (string, error) {
	inv := e.newInvocation(opts.Generation, opts.Input)

	table := flows.Clone()
	flow.ApplyOverrides(table, opts.ActionParams, opts.ConditionParams)

	inv.logger.Debug("engine.generate.start", "flows", table.Len(), "input", opts.Input)

	evaluated := make([]string, 0, table.Len())
	for name, f := range table.All() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		evaluated = append(evaluated, name)

		outcome := flow.DefaultCondition
		if f != nil && f.Condition != nil {
			out, err := e.execute(ctx, inv, RoleCondition, f.Condition)
			if err != nil {
				return "", fmt.Errorf("flow %q: %w", name, err)
			}
			outcome = strings.TrimSpace(out)
			inv.logger.Debug("engine.flow.condition", "flow", name, "outcome", outcome)
		}

		action, ok := f.Select(outcome)
		if !ok {
			inv.logger.Debug("engine.flow.skip", "flow", name, "outcome", outcome, "cases", actionKeys(f))
			continue
		}

		inv.logger.Info("engine.flow.matched", "flow", name, "outcome", outcome)
		out, err := e.execute(ctx, inv, RoleAction, action)
		if err != nil {
			return "", fmt.Errorf("flow %q: %w", name, err)
		}
		return out, nil
	}

	inv.logger.Warn("engine.generate.no_match", "flows", evaluated, "input", opts.Input)
	return "", &NoMatchingFlowError{Input: opts.Input, Flows: evaluated}
}

// ExecuteTask runs a single task in the given role and returns its output
// as a string.
func (e *Engine) ExecuteTask(ctx context.Context, role string, task *flow.Task, gen model.Options, input string) (string, error) {
	return e.execute(ctx, e.newInvocation(gen, input), role, task)
}

func (e *Engine) execute(ctx context.Context, inv *invocation, role string, task *flow.Task) (string, error) {
	start := time.Now()

	var (
		out string
		err error
	)
	switch task.Type {
	case flow.TaskTypePrompt:
		out, err = e.executePrompt(ctx, inv, role, task)
	case flow.TaskTypeFunction:
		out, err = e.executeFunction(ctx, role, task)
	default:
		return "", &DispatchError{Role: role, Type: string(task.Type)}
	}
	if err != nil {
		inv.logger.Error("engine.task.failed", "role", role, "type", string(task.Type), "task", task.Task, "error", err)
		return "", err
	}

	inv.logger.Debug("engine.task.executed",
		"role", role,
		"type", string(task.Type),
		"task", task.Task,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (e *Engine) executePrompt(ctx context.Context, inv *invocation, role string, task *flow.Task) (string, error) {
	if e.model == nil {
		return "", fmt.Errorf("%s prompt: %w", role, ErrNoModel)
	}

	prompt, err := e.renderer.Render(task.Task, task.Params)
	if err != nil {
		return "", fmt.Errorf("%s prompt: %w", role, err)
	}

	parts := []model.Part{model.TextPart{Text: prompt}}
	if inv.input != "" {
		image, err := inv.imageURL(e.encoder)
		if err != nil {
			return "", fmt.Errorf("%s prompt: %w", role, err)
		}
		parts = append(parts, model.ImagePart{URL: image})
	}

	resp, err := model.Collect(ctx, e.model, model.Request{
		Contents: []model.Content{{Role: "user", Parts: parts}},
		Options:  inv.gen,
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt: model %s: %w", role, e.model.Info().Name, err)
	}
	return resp.Content.Text(), nil
}

// imageURL encodes the input once per invocation.
func (inv *invocation) imageURL(enc ImageEncoder) (string, error) {
	if inv.encoded {
		return inv.image, nil
	}
	image, err := enc.Encode(inv.input)
	if err != nil {
		return "", fmt.Errorf("encode input: %w", err)
	}
	inv.image, inv.encoded = image, true
	return image, nil
}

func (e *Engine) executeFunction(ctx context.Context, role string, task *flow.Task) (string, error) {
	fn, ok := e.functions.Lookup(task.Source, task.Task)
	if !ok {
		return "", &TaskNotFoundError{Role: role, Source: function.NormalizeSource(task.Source), Name: task.Task}
	}

	result, err := fn.Call(ctx, task.Params)
	if err != nil {
		return "", fmt.Errorf("%s function: %w", role, err)
	}

	out, err := Stringify(result)
	if err != nil {
		return "", fmt.Errorf("%s function %s: %w", role, task.Task, err)
	}
	return out, nil
}

func actionKeys(f *flow.Flow) []string {
	if f == nil {
		return []string{}
	}
	return f.Action.Keys()
}
