package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/railflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageBody = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [{"type": "text", "text": "no"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 20, "output_tokens": 1}
}`

func TestModel_GenerateSendsImageBlocks(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageBody)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents: []model.Content{
			{Role: "system", Parts: []model.Part{model.TextPart{Text: "Answer yes or no."}}},
			{Role: "user", Parts: []model.Part{
				model.TextPart{Text: "Is there a dog?"},
				model.ImagePart{URL: "data:image/jpeg;base64,/9j/AA=="},
			}},
		},
		Options: model.Options{MaxTokens: model.Int(5)},
	})
	require.NoError(t, err)

	assert.Equal(t, "no", resp.Content.Text())
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 21, resp.Usage.TotalTokens)

	assert.Equal(t, 5.0, captured["max_tokens"])
	require.NotNil(t, captured["system"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	image := content[1].(map[string]any)
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.Equal(t, "/9j/AA==", source["data"])
}

func TestModel_RejectsRemoteImages(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.BaseURL = "http://127.0.0.1:0" })

	_, err := model.Collect(context.Background(), m, model.Request{
		Contents: []model.Content{{Role: "user", Parts: []model.Part{model.ImagePart{URL: "https://example.com/a.png"}}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inline base64")
}
