package flow

import (
	"maps"

	"github.com/mohae/deepcopy"
)

// TaskType selects how a task is executed.
type TaskType string

const (
	// TaskTypePrompt renders the task text as a template and asks the model.
	TaskTypePrompt TaskType = "prompt"
	// TaskTypeFunction calls a registered function.
	TaskTypeFunction TaskType = "function"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	return t == TaskTypePrompt || t == TaskTypeFunction
}

// DefaultCondition is the reserved action key of unconditional flows.
const DefaultCondition = "True"

// Definition is a named prompt or function entry of a registry. For prompts
// Task holds the template text, for functions the function name; Source is
// the function namespace.
type Definition struct {
	Task   string
	Source string
	Params map[string]any
}

// Registry is a name -> Definition table built once at load time.
// A nil Registry behaves as an empty one.
type Registry map[string]Definition

// Lookup returns the definition registered under name.
func (r Registry) Lookup(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	d, ok := r[name]
	return d, ok
}

// Task is a resolved action or condition: what to run and with which params.
type Task struct {
	Type   TaskType
	Task   string
	Source string
	Params map[string]any
}

// ResolveTask binds task to a registry entry of the matching type. On a hit
// the entry's task text and source are used and params are overlaid on the
// entry's defaults (params win). On a miss task and params are taken
// literally, so inline templates and registry names share one syntax.
func ResolveTask(typ TaskType, task string, params map[string]any, prompts, functions Registry) *Task {
	var (
		def Definition
		hit bool
	)
	switch typ {
	case TaskTypePrompt:
		def, hit = prompts.Lookup(task)
	case TaskTypeFunction:
		def, hit = functions.Lookup(task)
	}

	if !hit {
		return &Task{Type: typ, Task: task, Params: copyParams(params)}
	}

	merged := copyParams(def.Params)
	maps.Copy(merged, params)
	return &Task{Type: typ, Task: def.Task, Source: def.Source, Params: merged}
}

// UpdateParams merges p into the task params, replacing existing keys.
func (t *Task) UpdateParams(p map[string]any) {
	if len(p) == 0 {
		return
	}
	if t.Params == nil {
		t.Params = make(map[string]any, len(p))
	}
	maps.Copy(t.Params, p)
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Params = deepCopyParams(t.Params)
	return &c
}

func copyParams(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	maps.Copy(out, p)
	return out
}

func deepCopyParams(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	if copied, ok := deepcopy.Copy(p).(map[string]any); ok {
		return copied
	}
	return copyParams(p)
}
