package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/railflow/flow"
	"github.com/hupe1980/railflow/function"
	"github.com/hupe1980/railflow/logging"
	"github.com/hupe1980/railflow/model"
)

func prompt(text string, params map[string]any) *flow.Task {
	return &flow.Task{Type: flow.TaskTypePrompt, Task: text, Params: params}
}

func fnTask(source, name string, params map[string]any) *flow.Task {
	return &flow.Task{Type: flow.TaskTypeFunction, Task: name, Source: source, Params: params}
}

func mustFlow(t *testing.T, action flow.ActionRef, condition flow.Ref) *flow.Flow {
	t.Helper()
	f, err := flow.BuildFlow(action, condition, nil, nil)
	require.NoError(t, err)
	return f
}

func table(entries ...any) *flow.FlowTable {
	ft := flow.NewFlowTable()
	for i := 0; i < len(entries); i += 2 {
		ft.Add(entries[i].(string), entries[i+1].(*flow.Flow))
	}
	return ft
}

func TestGenerate_UnconditionalFlow(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Describe the cat.", "A fluffy cat.")

	flows := table("describe", mustFlow(t, flow.Always(flow.Inline(prompt("Describe the {{.subject}}.", map[string]any{"subject": "cat"}))), flow.Ref{}))

	out, err := New(m, nil).Generate(context.Background(), flows, GenerateOptions{
		Generation: model.Options{Model: "gpt-4o-mini"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A fluffy cat.", out)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gpt-4o-mini", reqs[0].Options.Model)
	assert.Equal(t, "user", reqs[0].Contents[0].Role)
	assert.Len(t, reqs[0].Contents[0].Parts, 1)
}

func TestGenerate_ConditionSelectsActionCaseInsensitively(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Is there a dog?", "  YES \n")
	m.AddResponse("Name the breed.", "Beagle")

	f := mustFlow(t,
		flow.Switch(
			flow.Case{Key: "yes", Ref: flow.Inline(prompt("Name the breed.", nil))},
			flow.Case{Key: "no", Ref: flow.Inline(prompt("Say nothing.", nil))},
		),
		flow.Inline(prompt("Is there a dog?", nil)),
	)

	out, err := New(m, nil).Generate(context.Background(), table("dog", f), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Beagle", out)
	assert.Len(t, m.Requests(), 2)
}

func TestGenerate_AdvancesOnUnmatchedOutcome(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Is it a cat?", "maybe")
	m.AddResponse("Fallback.", "generic answer")

	flows := table(
		"cat", mustFlow(t,
			flow.Switch(flow.Case{Key: "yes", Ref: flow.Inline(prompt("Cat action.", nil))}),
			flow.Inline(prompt("Is it a cat?", nil)),
		),
		"fallback", mustFlow(t, flow.Always(flow.Inline(prompt("Fallback.", nil))), flow.Ref{}),
	)

	out, err := New(m, nil).Generate(context.Background(), flows, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "generic answer", out)
}

func TestGenerate_NoMatchingFlow(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Q1", "no")
	m.AddResponse("Q2", "no")

	flows := table(
		"first", mustFlow(t, flow.Switch(flow.Case{Key: "yes", Ref: flow.Inline(prompt("A", nil))}), flow.Inline(prompt("Q1", nil))),
		"second", mustFlow(t, flow.Switch(flow.Case{Key: "yes", Ref: flow.Inline(prompt("B", nil))}), flow.Inline(prompt("Q2", nil))),
	)

	_, err := New(m, nil).Generate(context.Background(), flows, GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingFlow)

	var nmErr *NoMatchingFlowError
	require.ErrorAs(t, err, &nmErr)
	assert.Equal(t, []string{"first", "second"}, nmErr.Flows)
}

func TestGenerate_EmptyTable(t *testing.T) {
	_, err := New(nil, nil).Generate(context.Background(), flow.NewFlowTable(), GenerateOptions{Input: "img.png"})

	var nmErr *NoMatchingFlowError
	require.ErrorAs(t, err, &nmErr)
	assert.NotNil(t, nmErr.Flows)
	assert.Empty(t, nmErr.Flows)
	assert.Equal(t, "img.png", nmErr.Input)
	assert.Contains(t, err.Error(), "flow table is empty")
}

func TestGenerate_FlowWithoutActionsIsSkipped(t *testing.T) {
	m := model.NewMockModel("mock", "mock")

	flows := table("empty", &flow.Flow{})
	flows.Add("missing", nil)
	flows.Add("conditioned", &flow.Flow{Condition: prompt("Anything?", nil)})

	var err error
	assert.NotPanics(t, func() {
		_, err = New(m, nil).Generate(context.Background(), flows, GenerateOptions{
			ActionParams: map[string]any{"empty": map[string]any{"k": "v"}, "x": 1},
		})
	})

	var nmErr *NoMatchingFlowError
	require.ErrorAs(t, err, &nmErr)
	assert.Equal(t, []string{"empty", "missing", "conditioned"}, nmErr.Flows)
	assert.Len(t, m.Requests(), 1)
}

func TestGenerate_OverridesDoNotLeak(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Describe the cat.", "cat")
	m.AddResponse("Describe the dog.", "dog")

	action := prompt("Describe the {{.subject}}.", map[string]any{"subject": "cat"})
	flows := table("describe", mustFlow(t, flow.Always(flow.Inline(action)), flow.Ref{}))
	eng := New(m, nil)

	out, err := eng.Generate(context.Background(), flows, GenerateOptions{
		ActionParams: map[string]any{"subject": "dog"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dog", out)
	assert.Equal(t, "cat", action.Params["subject"])

	out, err = eng.Generate(context.Background(), flows, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cat", out)
}

func TestGenerate_ConditionOverride(t *testing.T) {
	fns := function.NewRegistry()
	fns.MustRegister("", function.NewFunc("over", "", nil, func(_ context.Context, args map[string]any) (any, error) {
		return args["value"].(int) > args["limit"].(int), nil
	}))

	f := mustFlow(t,
		flow.Switch(
			flow.Case{Key: "True", Ref: flow.Inline(fnTask("", "over", map[string]any{"value": 0, "limit": 0}))},
		),
		flow.Inline(fnTask("", "over", map[string]any{"value": 5, "limit": 10})),
	)
	flows := table("limit", f)
	eng := New(nil, fns)

	_, err := eng.Generate(context.Background(), flows, GenerateOptions{})
	assert.ErrorIs(t, err, ErrNoMatchingFlow)

	out, err := eng.Generate(context.Background(), flows, GenerateOptions{
		ConditionParams: map[string]any{"limit": map[string]any{"limit": 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "false", out)
}

func TestGenerate_FunctionTasks(t *testing.T) {
	fns := function.NewRegistry()
	fns.MustRegister("vision/quality", function.NewFunc("is_blurry", "", nil, func(context.Context, map[string]any) (any, error) {
		return true, nil
	}))
	fns.MustRegister("", function.NewFunc("report", "", nil, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"status": args["status"]}, nil
	}))

	f := mustFlow(t,
		flow.Switch(flow.Case{Key: "True", Ref: flow.Inline(fnTask("", "report", map[string]any{"status": "blurry"}))}),
		flow.Inline(fnTask("vision.quality", "is_blurry", nil)),
	)

	out, err := New(nil, fns).Generate(context.Background(), table("blur", f), GenerateOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"blurry"}`, out)
}

func TestGenerate_TaskErrorsAbort(t *testing.T) {
	boom := errors.New("model down")
	m := model.NewMockModel("mock", "mock")
	m.AddError("Q", boom)

	flows := table(
		"first", mustFlow(t, flow.Switch(flow.Case{Key: "yes", Ref: flow.Inline(prompt("A", nil))}), flow.Inline(prompt("Q", nil))),
		"second", mustFlow(t, flow.Always(flow.Inline(prompt("B", nil))), flow.Ref{}),
	)

	_, err := New(m, nil).Generate(context.Background(), flows, GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `flow "first"`)
	assert.Len(t, m.Requests(), 1)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flows := table("only", mustFlow(t, flow.Always(flow.Inline(prompt("A", nil))), flow.Ref{}))
	_, err := New(m, nil).Generate(ctx, flows, GenerateOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Requests())
}

func TestGenerate_ImageEncodedOncePerCall(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("Is it outdoors?", "yes")

	calls := 0
	eng := New(m, nil, func(o *Options) {
		o.ImageEncoder = ImageEncoderFunc(func(input string) (string, error) {
			calls++
			return "data:image/png;base64,AAAA", nil
		})
	})

	f := mustFlow(t,
		flow.Switch(flow.Case{Key: "yes", Ref: flow.Inline(prompt("Describe the scenery.", nil))}),
		flow.Inline(prompt("Is it outdoors?", nil)),
	)

	_, err := eng.Generate(context.Background(), table("outdoor", f), GenerateOptions{Input: "photo.png"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	for _, req := range m.Requests() {
		parts := req.Contents[0].Parts
		require.Len(t, parts, 2)
		assert.Equal(t, model.ImagePart{URL: "data:image/png;base64,AAAA"}, parts[1])
	}
}

func TestExecuteTask_Errors(t *testing.T) {
	ctx := context.Background()
	eng := New(nil, function.NewRegistry())

	_, err := eng.ExecuteTask(ctx, RoleCondition, prompt("hi", nil), model.Options{}, "")
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = eng.ExecuteTask(ctx, RoleAction, fnTask("tools", "missing", nil), model.Options{}, "")
	var nfErr *TaskNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, RoleAction, nfErr.Role)
	assert.Equal(t, "tools", nfErr.Source)
	assert.Equal(t, "missing", nfErr.Name)

	_, err = eng.ExecuteTask(ctx, RoleAction, &flow.Task{Type: "shell", Task: "ls"}, model.Options{}, "")
	var dErr *DispatchError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "shell", dErr.Type)
	assert.Equal(t, `cannot dispatch action task of type "shell"`, err.Error())
}

func TestExecuteTask_EncoderFailure(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	_, err := New(m, nil).ExecuteTask(context.Background(), RoleAction, prompt("hi", nil), model.Options{}, "/does/not/exist.png")
	assert.ErrorContains(t, err, "encode input")
	assert.Empty(t, m.Requests())
}

func TestExecuteTask_StrictTemplates(t *testing.T) {
	m := model.NewMockModel("mock", "mock")

	out, err := New(m, nil).ExecuteTask(context.Background(), RoleAction, prompt("Hi {{.name}}", nil), model.Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: Hi ", out)

	strict := New(m, nil, func(o *Options) { o.StrictTemplates = true })
	_, err = strict.ExecuteTask(context.Background(), RoleAction, prompt("Hi {{.name}}", nil), model.Options{}, "")
	assert.Error(t, err)
}

func TestGenerate_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.Config{Level: logging.LogLevelDebug, Format: "json", Output: &buf})

	m := model.NewMockModel("mock", "mock")
	flows := table("only", mustFlow(t, flow.Always(flow.Inline(prompt("A", nil))), flow.Ref{}))

	_, err := New(m, nil, func(o *Options) { o.Logger = logger }).Generate(context.Background(), flows, GenerateOptions{})
	require.NoError(t, err)

	logs := buf.String()
	for _, msg := range []string{"engine.generate.start", "engine.flow.matched", "engine.task.executed", "invocation_id", "duration_ms"} {
		assert.Contains(t, logs, msg)
	}
}

type celsius float64

func (c celsius) String() string { return "warm" }

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", " keep ", " keep "},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"float", 0.5, "0.5"},
		{"stringer", celsius(30), "warm"},
		{"map", map[string]int{"a": 1}, `{"a":1}`},
		{"slice", []string{"x", "y"}, `["x","y"]`},
		{"struct", struct {
			Label string `json:"label"`
		}{"cat"}, `{"label":"cat"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stringify(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Stringify(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
