package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/railflow/flow"
	"github.com/hupe1980/railflow/model"
)

type builder struct {
	cfg *Config
}

func newConfig() *Config {
	return &Config{
		Prompts:    flow.Registry{},
		Functions:  flow.Registry{},
		Actions:    map[string]*flow.Task{},
		Conditions: map[string]*flow.Task{},
		Flows:      map[string]*flow.Flow{},
		Rails:      flow.NewRails(),
	}
}

func build(doc *document) (*Config, error) {
	b := &builder{cfg: newConfig()}

	if err := b.definitions("prompts", doc.Prompts, b.cfg.Prompts); err != nil {
		return nil, err
	}
	if err := b.definitions("functions", doc.Functions, b.cfg.Functions); err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(doc.Actions)) {
		t, err := b.task("actions", name, doc.Actions[name])
		if err != nil {
			return nil, err
		}
		b.cfg.Actions[name] = t
	}
	for _, name := range slices.Sorted(maps.Keys(doc.Conditions)) {
		t, err := b.task("conditions", name, doc.Conditions[name])
		if err != nil {
			return nil, err
		}
		b.cfg.Conditions[name] = t
	}

	for _, name := range slices.Sorted(maps.Keys(doc.Flows)) {
		f, err := b.flow("flows", name, doc.Flows[name])
		if err != nil {
			return nil, err
		}
		b.cfg.Flows[name] = f
	}

	if _, err := b.rails(doc.Rails); err != nil {
		return nil, err
	}

	if len(doc.Generation) > 0 {
		gen, err := model.OptionsFromMap(doc.Generation)
		if err != nil {
			return nil, &Error{Section: "generation", Message: "invalid generation options", Err: err}
		}
		b.cfg.Generation = gen
	}

	return b.cfg, nil
}

func (b *builder) definitions(section string, docs map[string]definitionDoc, into flow.Registry) error {
	for _, name := range slices.Sorted(maps.Keys(docs)) {
		d := docs[name]
		if err := validateEntry(section, name, &d); err != nil {
			return err
		}
		into[name] = flow.Definition{Task: d.Task, Source: d.Source, Params: d.Params}
	}
	return nil
}

// task decodes an action or condition and resolves it against the prompt
// and function registries.
func (b *builder) task(section, name string, raw any) (*flow.Task, error) {
	var td taskDoc
	if err := decodeInto(section, name, raw, &td); err != nil {
		return nil, err
	}
	return flow.ResolveTask(flow.TaskType(td.Type), td.Task, td.Params, b.cfg.Prompts, b.cfg.Functions), nil
}

// ref turns a name or an inline task mapping into a flow.Ref.
func (b *builder) ref(section, name string, raw any) (flow.Ref, error) {
	switch v := raw.(type) {
	case string:
		return flow.Named(v), nil
	case map[string]any:
		t, err := b.task(section, name, v)
		if err != nil {
			return flow.Ref{}, err
		}
		return flow.Inline(t), nil
	default:
		return flow.Ref{}, &Error{
			Section: section,
			Name:    name,
			Message: fmt.Sprintf("expected a name or an inline task, got %T", raw),
		}
	}
}

func (b *builder) flow(section, name string, raw any) (*flow.Flow, error) {
	var fd flowDoc
	if err := decodeInto(section, name, raw, &fd); err != nil {
		return nil, err
	}

	action, err := b.action(section, name, fd.Action)
	if err != nil {
		return nil, err
	}

	var condition flow.Ref
	if fd.Condition != nil {
		if condition, err = b.ref(section, name+".condition", fd.Condition); err != nil {
			return nil, err
		}
	}

	f, err := flow.BuildFlow(action, condition, b.cfg.Actions, b.cfg.Conditions)
	if err != nil {
		return nil, &Error{Section: section, Name: name, Message: "invalid flow", Err: err}
	}
	return f, nil
}

// action decodes the action side of a flow: a single name or inline task
// runs unconditionally, any other mapping lists outcome cases.
func (b *builder) action(section, name string, raw any) (flow.ActionRef, error) {
	switch v := raw.(type) {
	case nil:
		return flow.ActionRef{}, &Error{Section: section, Name: name, Message: "missing action"}
	case string:
		return flow.Always(flow.Named(v)), nil
	case map[string]any:
		if isInlineTask(v) {
			ref, err := b.ref(section, name+".action", v)
			if err != nil {
				return flow.ActionRef{}, err
			}
			return flow.Always(ref), nil
		}
		cases := make([]flow.Case, 0, len(v))
		seen := make(map[string]string, len(v))
		for _, key := range slices.Sorted(maps.Keys(v)) {
			if prev, dup := seen[strings.ToLower(key)]; dup {
				return flow.ActionRef{}, &Error{
					Section: section,
					Name:    name,
					Message: fmt.Sprintf("outcome %q duplicates %q (outcomes are case-insensitive)", key, prev),
				}
			}
			seen[strings.ToLower(key)] = key
			ref, err := b.ref(section, name+".action."+key, v[key])
			if err != nil {
				return flow.ActionRef{}, err
			}
			cases = append(cases, flow.Case{Key: key, Ref: ref})
		}
		return flow.Switch(cases...), nil
	default:
		return flow.ActionRef{}, &Error{
			Section: section,
			Name:    name,
			Message: fmt.Sprintf("action must be a name or a mapping, got %T", raw),
		}
	}
}

// isInlineTask reports whether m is a task definition rather than an
// outcome table: both type and task are given as strings.
func isInlineTask(m map[string]any) bool {
	typ, ok := m["type"].(string)
	if !ok || !flow.TaskType(typ).Valid() {
		return false
	}
	_, ok = m["task"].(string)
	return ok
}

func (b *builder) rails(doc *railsDoc) (*flow.Rails, error) {
	if doc == nil {
		return nil, &Error{Section: "rails", Message: errMissingRails}
	}
	if err := b.railSection("rails.input", doc.Input, b.cfg.Rails.Input); err != nil {
		return nil, err
	}
	if err := b.railSection("rails.output", doc.Output, b.cfg.Rails.Output); err != nil {
		return nil, err
	}
	return b.cfg.Rails, nil
}

func (b *builder) railSection(section string, rd railDoc, table *flow.FlowTable) error {
	for i, entry := range rd.Flows {
		switch e := entry.(type) {
		case string:
			f, ok := b.cfg.Flows[e]
			if !ok {
				return &Error{Section: section, Name: e, Message: "invalid rail", Err: &flow.ReferenceError{Kind: "flow", Name: e}}
			}
			table.Add(e, f)
		case map[string]any:
			if len(e) != 1 {
				return &Error{
					Section: section,
					Name:    fmt.Sprint(i),
					Message: fmt.Sprintf("inline flow must be a single-key mapping, got %d keys", len(e)),
				}
			}
			for name, raw := range e {
				f, err := b.flow(section, name, raw)
				if err != nil {
					return err
				}
				table.Add(name, f)
			}
		default:
			return &Error{
				Section: section,
				Name:    fmt.Sprint(i),
				Message: fmt.Sprintf("flow entry must be a name or a mapping, got %T", entry),
			}
		}
	}
	return nil
}
