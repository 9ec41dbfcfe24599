package flow

import (
	"fmt"
	"maps"
	"slices"
)

// ApplyOverrides merges per-run parameters into the tasks of flows.
//
// For each key of actionParams:
//   - key names a flow and the value is a mapping: every entry whose value
//     is itself a mapping and whose key names an action case of that flow
//     is merged into that action only; other entries are merged into every
//     action of the flow.
//   - key names a flow and the value is not a mapping: {key: value} is
//     merged into every action of the flow.
//   - key names no flow: {key: value} is merged into every action of
//     every flow.
//
// conditionParams follow the same rules against flow conditions, where a
// mapping under a flow name is merged into that flow's condition as a whole.
//
// ApplyOverrides mutates the tasks in place; call it on a Clone.
func ApplyOverrides(flows *FlowTable, actionParams, conditionParams map[string]any) {
	applyActionParams(flows, actionParams)
	applyConditionParams(flows, conditionParams)
}

func applyActionParams(flows *FlowTable, params map[string]any) {
	for _, key := range sortedKeys(params) {
		value := params[key]
		f, ok := flows.Get(key)
		if !ok {
			for _, other := range flows.All() {
				updateActions(other, map[string]any{key: value})
			}
			continue
		}

		nested, ok := asParams(value)
		if !ok {
			updateActions(f, map[string]any{key: value})
			continue
		}
		for _, k := range sortedKeys(nested) {
			v := nested[k]
			if target, isCase := selectCase(f, k); isCase {
				if p, ok := asParams(v); ok {
					target.UpdateParams(p)
					continue
				}
			}
			updateActions(f, map[string]any{k: v})
		}
	}
}

func applyConditionParams(flows *FlowTable, params map[string]any) {
	for _, key := range sortedKeys(params) {
		value := params[key]
		f, ok := flows.Get(key)
		if !ok {
			for _, other := range flows.All() {
				if other != nil && other.Condition != nil {
					other.Condition.UpdateParams(map[string]any{key: value})
				}
			}
			continue
		}
		if f == nil || f.Condition == nil {
			continue
		}
		if nested, ok := asParams(value); ok {
			f.Condition.UpdateParams(nested)
			continue
		}
		f.Condition.UpdateParams(map[string]any{key: value})
	}
}

func selectCase(f *Flow, key string) (*Task, bool) {
	if f == nil || f.Action == nil {
		return nil, false
	}
	return f.Action.Get(key)
}

func updateActions(f *Flow, p map[string]any) {
	if f == nil || f.Action == nil {
		return
	}
	for _, t := range f.Action.All() {
		t.UpdateParams(p)
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// asParams converts decoded mappings (including YAML's map[any]any) into a
// string-keyed params map.
func asParams(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
