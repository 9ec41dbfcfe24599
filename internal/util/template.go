package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
)

// HasTemplate reports whether text contains template markers.
func HasTemplate(text string) bool {
	return strings.Contains(text, "{{")
}

// RenderTemplate renders text as a Go text/template against params, with the
// sprig function map available. With strict set a missing key is an error,
// otherwise a top-level field missing from params renders empty.
func RenderTemplate(text string, params map[string]any, strict bool) (string, error) {
	if !HasTemplate(text) { // fast path: no template markers
		return text, nil
	}

	missingKey := "missingkey=default"
	if strict {
		missingKey = "missingkey=error"
	}

	tmpl, err := template.New("prompt").Option(missingKey).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	if !strict {
		params = withMissingFields(tmpl, params)
	} else if params == nil {
		params = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}

	return buf.String(), nil
}

// withMissingFields returns a copy of params in which every top-level field
// referenced by tmpl but absent from params is set to "". A field used with
// a nested path ({{.a.b}}) is set to an empty map instead.
func withMissingFields(tmpl *template.Template, params map[string]any) map[string]any {
	filled := make(map[string]any, len(params))
	for k, v := range params {
		filled[k] = v
	}

	var walk func(n parse.Node)
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, c := range n.Nodes {
				walk(c)
			}
		case *parse.ActionNode:
			walk(n.Pipe)
		case *parse.IfNode:
			walkBranch(&n.BranchNode, walk)
		case *parse.RangeNode:
			walkBranch(&n.BranchNode, walk)
		case *parse.WithNode:
			walkBranch(&n.BranchNode, walk)
		case *parse.TemplateNode:
			walk(n.Pipe)
		case *parse.PipeNode:
			if n == nil {
				return
			}
			for _, c := range n.Cmds {
				walk(c)
			}
		case *parse.CommandNode:
			for _, a := range n.Args {
				walk(a)
			}
		case *parse.FieldNode:
			name := n.Ident[0]
			if _, ok := filled[name]; ok {
				return
			}
			if len(n.Ident) > 1 {
				filled[name] = map[string]any{}
			} else {
				filled[name] = ""
			}
		}
	}

	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			walk(t.Tree.Root)
		}
	}
	return filled
}

func walkBranch(b *parse.BranchNode, walk func(parse.Node)) {
	walk(b.Pipe)
	walk(b.List)
	if b.ElseList != nil {
		walk(b.ElseList)
	}
}
