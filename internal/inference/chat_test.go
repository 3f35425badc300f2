package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	Messages    []chatMessageIn `json:"messages"`
}

type chatMessageIn struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func TestChatBackendInferImageSendsDataURL(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(w, "  FORM \n")
	}))
	defer server.Close()

	backend, err := NewChatBackend(GroqVision("test-key", server.URL, "vision-model"))
	require.NoError(t, err)

	answer, err := backend.InferImage(context.Background(), []byte{0xff, 0xd8, 0xff}, BuildClassifyPrompt(ImageContentPlaceholder))
	require.NoError(t, err)
	assert.Equal(t, "FORM", answer)

	assert.Equal(t, "vision-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	body := string(got.Messages[0].Content)
	assert.Contains(t, body, `"type":"image_url"`)
	assert.Contains(t, body, "data:image/jpeg;base64,/9j/")
	assert.Contains(t, body, ImageContentPlaceholder)
}

func TestChatBackendInferTextUsesSystemPromptAndCleansOutput(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(w, "```\nOTHER\n```")
	}))
	defer server.Close()

	backend, err := NewChatBackend(DeepSeekText("test-key", server.URL, "deepseek-chat"))
	require.NoError(t, err)

	answer, err := backend.InferText(context.Background(), "Page content: schedule of rates")
	require.NoError(t, err)
	assert.Equal(t, "OTHER", answer)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.JSONEq(t, `"You are a tender consultant."`, string(got.Messages[0].Content))
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestChatBackendClassifiesAuthFailureAsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	backend, err := NewChatBackend(DeepSeekText("bad-key", server.URL, "deepseek-chat"))
	require.NoError(t, err)

	retrying := &Retrying{Backend: backend, Attempts: 3, Delay: 0}
	_, err = retrying.InferText(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatBackendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
			return
		}
		chatReply(w, "FORM")
	}))
	defer server.Close()

	backend, err := NewChatBackend(DeepSeekText("test-key", server.URL, "deepseek-chat"))
	require.NoError(t, err)

	retrying := &Retrying{Backend: backend, Attempts: 3, Delay: 0}
	answer, err := retrying.InferText(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "FORM", answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewChatBackendRequiresKey(t *testing.T) {
	_, err := NewChatBackend(ChatConfig{Name: "groq"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "groq"))
}
