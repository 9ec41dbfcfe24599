// Package engine executes railflow tasks and evaluates flow tables.
//
// A task is either a prompt, rendered with its params and sent to a
// model.Model together with the optional input image, or a function looked
// up in a function.Registry and called with its params. Both produce a
// string: the outcome of a condition or the output of an action.
//
// Generate walks a flow table in order:
//
//	for each flow:
//	    outcome := condition(input)          // "True" when the flow has none
//	    if action, ok := flow.Action[outcome]; ok {   // case-insensitive
//	        return action(input)
//	    }
//	return NoMatchingFlowError
//
// Per-call parameter overrides are applied to a clone of the table, so a
// loaded configuration can be shared by concurrent Generate calls.
package engine
