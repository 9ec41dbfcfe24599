// Package flow defines the railflow object model.
//
// A Flow pairs an optional condition task with an action table keyed by the
// condition outcomes it handles. Flows are grouped into ordered FlowTables,
// and the two tables "input" and "output" form the Rails of a configuration.
//
// Tasks are resolved against prompt and function registries (ResolveTask),
// flows against action and condition tables (BuildFlow). Resolved instances
// are shared: a flow that references the action "summarize" holds the very
// *Task stored in the action table. Per-run parameter tuning therefore works
// on a Clone of a FlowTable (see ApplyOverrides), never on the loaded tables.
package flow

import (
	"iter"

	"github.com/hupe1980/railflow/casemap"
)

// Flow is one condition/action unit of a rail.
type Flow struct {
	// Action maps condition outcomes to actions, case-insensitively. A flow
	// without condition has a single entry under DefaultCondition.
	Action *casemap.Map[string, *Task]
	// Condition is nil for unconditional flows.
	Condition *Task
}

// Select returns the action for a condition outcome.
func (f *Flow) Select(outcome string) (*Task, bool) {
	if f == nil || f.Action == nil {
		return nil, false
	}
	return f.Action.Get(outcome)
}

// Ref points to a task either by table name or directly by an inline,
// already resolved task. Task takes precedence over Name.
type Ref struct {
	Name string
	Task *Task
}

// Named returns a Ref to a table entry.
func Named(name string) Ref { return Ref{Name: name} }

// Inline returns a Ref holding t itself.
func Inline(t *Task) Ref { return Ref{Task: t} }

// IsZero reports whether r references nothing.
func (r Ref) IsZero() bool { return r.Name == "" && r.Task == nil }

// Case is one outcome -> action entry of an ActionRef.
type Case struct {
	Key string
	Ref Ref
}

// ActionRef is the action side of a flow definition: either a single
// unconditional reference (Always) or a list of outcome cases (Switch).
type ActionRef struct {
	always *Ref
	cases  []Case
}

// Always builds an ActionRef that runs ref regardless of any condition.
func Always(ref Ref) ActionRef { return ActionRef{always: &ref} }

// Switch builds an ActionRef selecting among cases by condition outcome.
func Switch(cases ...Case) ActionRef { return ActionRef{cases: cases} }

// IsAlways reports whether a is an unconditional reference.
func (a ActionRef) IsAlways() bool { return a.always != nil }

// BuildFlow resolves action and condition references against the action and
// condition tables. An unconditional action lands under DefaultCondition;
// switch cases keep their original keys. A zero condition Ref yields an
// unconditional flow. Names absent from their table are *ReferenceError.
func BuildFlow(action ActionRef, condition Ref, actions, conditions map[string]*Task) (*Flow, error) {
	table := casemap.New[string, *Task]()

	if action.always != nil {
		t, err := resolveRef("action", *action.always, actions)
		if err != nil {
			return nil, err
		}
		table.Set(DefaultCondition, t)
	} else {
		for _, c := range action.cases {
			t, err := resolveRef("action", c.Ref, actions)
			if err != nil {
				return nil, err
			}
			table.Set(c.Key, t)
		}
	}

	f := &Flow{Action: table}
	if !condition.IsZero() {
		t, err := resolveRef("condition", condition, conditions)
		if err != nil {
			return nil, err
		}
		f.Condition = t
	}
	return f, nil
}

func resolveRef(kind string, r Ref, table map[string]*Task) (*Task, error) {
	if r.Task != nil {
		return r.Task, nil
	}
	if t, ok := table[r.Name]; ok {
		return t, nil
	}
	return nil, &ReferenceError{Kind: kind, Name: r.Name}
}

// FlowTable is an insertion-ordered name -> Flow table. Its order is the
// evaluation order of a rail.
type FlowTable struct {
	names []string
	flows map[string]*Flow
}

// NewFlowTable returns an empty table.
func NewFlowTable() *FlowTable {
	return &FlowTable{flows: make(map[string]*Flow)}
}

// Add appends f under name. Re-adding a name replaces the flow in place.
func (t *FlowTable) Add(name string, f *Flow) {
	if _, ok := t.flows[name]; !ok {
		t.names = append(t.names, name)
	}
	t.flows[name] = f
}

// Get returns the flow registered under name.
func (t *FlowTable) Get(name string) (*Flow, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.flows[name]
	return f, ok
}

// Len returns the number of flows.
func (t *FlowTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Names returns the flow names in evaluation order.
func (t *FlowTable) Names() []string {
	if t == nil {
		return []string{}
	}
	return append([]string{}, t.names...)
}

// All iterates over the flows in evaluation order.
func (t *FlowTable) All() iter.Seq2[string, *Flow] {
	return func(yield func(string, *Flow) bool) {
		if t == nil {
			return
		}
		for _, name := range t.names {
			if !yield(name, t.flows[name]) {
				return
			}
		}
	}
}

// Clone deep-copies the table. Tasks shared between flows of t stay shared
// between the flows of the copy, but nothing is shared with t itself.
func (t *FlowTable) Clone() *FlowTable {
	c := NewFlowTable()
	if t == nil {
		return c
	}
	tasks := make(map[*Task]*Task)
	cloneTask := func(task *Task) *Task {
		if task == nil {
			return nil
		}
		if done, ok := tasks[task]; ok {
			return done
		}
		cp := task.Clone()
		tasks[task] = cp
		return cp
	}
	flows := make(map[*Flow]*Flow)
	for _, name := range t.names {
		f := t.flows[name]
		if f == nil {
			c.Add(name, nil)
			continue
		}
		if done, ok := flows[f]; ok {
			c.Add(name, done)
			continue
		}
		cp := &Flow{Condition: cloneTask(f.Condition)}
		if f.Action != nil {
			cp.Action = f.Action.CloneFunc(cloneTask)
		}
		flows[f] = cp
		c.Add(name, cp)
	}
	return c
}

// Rails holds the input and output flow tables.
type Rails struct {
	Input  *FlowTable
	Output *FlowTable
}

// NewRails returns Rails with two empty tables.
func NewRails() *Rails {
	return &Rails{Input: NewFlowTable(), Output: NewFlowTable()}
}
