package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/sparkforge/spark-os/backend/internal/model/chat"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestOpenAICompleterBuildsMessages(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "How many halves make a whole?"}}}}
	completer := NewOpenAICompleterWithModel(model, 0.7, 300)

	text, err := completer.Complete(context.Background(), Request{
		Directive: "be socratic",
		History: []chat.Turn{
			{Role: chat.RoleUser, Content: "hi"},
			{Role: chat.RolePersona, Content: "hello"},
		},
		Message: "fractions?",
	})
	require.NoError(t, err)
	assert.Equal(t, "How many halves make a whole?", text)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[3].Role)
	assert.Equal(t, 0.7, model.opts.Temperature)
	assert.Equal(t, 300, model.opts.MaxTokens)
}

func TestOpenAICompleterErrors(t *testing.T) {
	_, err := NewOpenAICompleterWithModel(&fakeModel{err: errors.New("429")}, 0.7, 300).
		Complete(context.Background(), Request{Message: "x"})
	assert.Error(t, err)

	_, err = NewOpenAICompleterWithModel(&fakeModel{resp: &llms.ContentResponse{}}, 0.7, 300).
		Complete(context.Background(), Request{Message: "x"})
	assert.Error(t, err)
}
