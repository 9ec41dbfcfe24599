// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/railflow/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate implements model.Model with a single non-streaming message call.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		messages, err := m.buildMessages(req.Contents)
		if err != nil {
			errCh <- err
			return
		}

		params := m.buildParams(req.Options, messages)
		if systemBlocks := m.extractSystemMessage(req.Contents); len(systemBlocks) > 0 {
			params.System = systemBlocks
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []model.Part
		for _, block := range resp.Content {
			if block.Type == "text" {
				if text := block.AsText().Text; text != "" {
					parts = append(parts, model.TextPart{Text: text})
				}
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Content:      model.Content{Role: "assistant", Parts: parts},
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

func (m *Model) buildParams(o model.Options, messages []anthropic.MessageParam) anthropic.MessageNewParams {
	name := m.opts.Model
	if o.Model != "" {
		name = anthropic.Model(o.Model)
	}
	temperature := m.opts.Temperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	maxTokens := m.opts.MaxTokens
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       name,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if o.TopP != nil {
		params.TopP = anthropic.Float(*o.TopP)
	}
	if len(o.Stop) > 0 {
		params.StopSequences = o.Stop
	}
	return params
}

// buildMessages converts railflow contents to Anthropic message format.
func (m *Model) buildMessages(contents []model.Content) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam

	for _, c := range contents {
		switch c.Role {
		case "system":
			continue // System messages handled separately
		case "assistant":
			if text := c.Text(); text != "" {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
			}
		default:
			content, err := m.buildUserContent(c.Parts)
			if err != nil {
				return nil, err
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		}
	}

	return messages, nil
}

// extractSystemMessage extracts system message blocks
func (m *Model) extractSystemMessage(contents []model.Content) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam

	for _, c := range contents {
		if c.Role != "system" {
			continue
		}
		if text := c.Text(); text != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: text})
		}
	}

	return systemBlocks
}

// buildUserContent builds content for user messages. Images must be inline
// data URLs; they are sent as base64 image blocks.
func (m *Model) buildUserContent(parts []model.Part) ([]anthropic.ContentBlockParamUnion, error) {
	var content []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		switch part := p.(type) {
		case model.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case model.ImagePart:
			mimeType, data, ok := model.ParseDataURL(part.URL)
			if !ok {
				return nil, fmt.Errorf("anthropic: image must be an inline base64 data url")
			}
			content = append(content, anthropic.NewImageBlockBase64(mimeType, data))
		}
	}

	return content, nil
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: "anthropic",
	}
}
