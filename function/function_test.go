package function

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumFunc() *Func {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	return NewFunc("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

func TestFunc_Success(t *testing.T) {
	result, err := sumFunc().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunc_ValidationError(t *testing.T) {
	_, err := sumFunc().Call(context.Background(), map[string]any{"a": 1.0})
	require.Error(t, err)

	var fnErr *Error
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, CodeValidation, fnErr.Code)
	assert.Equal(t, "sum", fnErr.Function)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "b", vErr.Field)
}

func TestFunc_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	fn := NewFunc("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, boom
	})

	_, err := fn.Call(context.Background(), nil)
	var fnErr *Error
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, CodeExecution, fnErr.Code)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "function error [EXECUTION_ERROR] in fail: boom", err.Error())
}

func TestFunc_ForwardsOwnErrors(t *testing.T) {
	custom := NewError("quota", "daily quota exceeded", "QUOTA")
	fn := NewFunc("quota", "", nil, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})

	_, err := fn.Call(context.Background(), nil)
	assert.Same(t, custom, err)
}

func TestNewFuncFromStruct(t *testing.T) {
	type args struct {
		Text string `json:"text" description:"Input text"`
	}
	fn := NewFuncFromStruct("echo", "Echo text", args{}, func(_ context.Context, a map[string]any) (any, error) {
		return a["text"], nil
	})

	_, err := fn.Call(context.Background(), map[string]any{})
	assert.Error(t, err)

	out, err := fn.Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, "Echo text", fn.Description())
}

func TestRegistry_Namespaces(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("", sumFunc()))
	require.NoError(t, r.Register("math/basic", sumFunc()))

	_, ok := r.Lookup("", "sum")
	assert.True(t, ok)
	_, ok = r.Lookup("math.basic", "sum")
	assert.True(t, ok)
	_, ok = r.Lookup("math/basic/", "sum")
	assert.True(t, ok)
	_, ok = r.Lookup("math", "sum")
	assert.False(t, ok)

	assert.Equal(t, []string{"math.basic.sum", "sum"}, r.Names())

	err := r.Register("math.basic", sumFunc())
	assert.ErrorContains(t, err, "already registered")
	assert.Panics(t, func() { r.MustRegister("", sumFunc()) })

	var nilRegistry *Registry
	_, ok = nilRegistry.Lookup("", "sum")
	assert.False(t, ok)
	assert.NotPanics(t, func() { assert.Empty(t, nilRegistry.Names()) })
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register("ns", NewFunc(string(rune('a'+i)), "", nil, func(context.Context, map[string]any) (any, error) { return nil, nil }))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = r.Lookup("ns", "a")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Names(), 20)
}

func TestNormalizeSource(t *testing.T) {
	assert.Equal(t, "a.b.c", NormalizeSource("a/b/c"))
	assert.Equal(t, "a.b", NormalizeSource(" a.b. "))
	assert.Equal(t, "", NormalizeSource(""))
}
