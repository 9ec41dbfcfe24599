package model

import (
	"context"
	"fmt"
	"strings"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ImagePart is an image attached to a message. URL is either a remote URL or
// an inline data URL ("data:image/png;base64,...").
type ImagePart struct {
	URL string
}

func (ImagePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // user, assistant, system
	Parts []Part `json:"parts"`
}

// Text concatenates all text parts.
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Request captures the normalized model input produced by the engine.
type Request struct {
	Contents []Content `json:"contents"`
	Options  Options   `json:"options"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Content      Content     `json:"content"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required by the engine to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains the channels returned by m.Generate and returns the final,
// non-partial response. It fails on the first reported error, on context
// cancellation, or when the model closes its stream without a final response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final Response
		done  bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final, done = resp, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !done {
		return Response{}, fmt.Errorf("%s: no final response", m.Info().Provider)
	}
	return final, nil
}

// ParseDataURL splits an inline "data:<mime>;base64,<payload>" URL.
func ParseDataURL(url string) (mimeType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, found = strings.CutSuffix(meta, ";base64")
	if !found {
		return "", "", false
	}
	return mimeType, payload, true
}
