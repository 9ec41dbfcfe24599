// Package config loads railflow configuration documents.
//
// A document has the top-level sections prompts, functions, actions,
// conditions, flows, rails and generation. Only rails is required:
//
//	prompts:
//	  describe:
//	    task: "Describe the {{.subject}} in {{.words}} words."
//	    params: {words: 20}
//	conditions:
//	  has_animal:
//	    type: prompt
//	    task: "Is there an animal in the image? Answer Yes or No."
//	actions:
//	  describe_animal:
//	    type: prompt
//	    task: describe
//	    params: {subject: animal}
//	flows:
//	  animal:
//	    condition: has_animal
//	    action: {Yes: describe_animal}
//	rails:
//	  input:
//	    flows:
//	      - animal
//	      - fallback:
//	          action: {type: prompt, task: "Describe the image."}
//
// Prompt text is a Go text/template with the sprig functions, so params
// are written {{.subject}} rather than the jinja form {{ subject }}. A
// param the task does not supply renders empty unless the engine runs with
// StrictTemplates.
//
// Sections are resolved in order: actions and conditions against prompts
// and functions (flow.ResolveTask), flows against actions and conditions
// (flow.BuildFlow), rails against flows. Actions, conditions and flows may
// also be given inline wherever a name is accepted.
package config

import (
	"fmt"

	"github.com/hupe1980/railflow/flow"
	"github.com/hupe1980/railflow/model"
)

// Config is a fully resolved configuration. Rails share the *flow.Flow and
// *flow.Task instances held in the named tables.
type Config struct {
	Prompts    flow.Registry
	Functions  flow.Registry
	Actions    map[string]*flow.Task
	Conditions map[string]*flow.Task
	Flows      map[string]*flow.Flow
	Rails      *flow.Rails

	// Generation holds default model options from the generation section.
	Generation model.Options
}

// Error reports an invalid configuration document.
type Error struct {
	Section string // top-level section, e.g. "actions"
	Name    string // entry within the section, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Name != "" {
		return fmt.Sprintf("config %s.%s: %s", e.Section, e.Name, msg)
	}
	if e.Section != "" {
		return fmt.Sprintf("config %s: %s", e.Section, msg)
	}
	return "config: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// errMissingRails is the message of the error returned for documents
// without a rails section.
const errMissingRails = "missing required 'rails' field in configuration"
