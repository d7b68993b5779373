package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/go-go-golems/trai/pkg/turns"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StreamSendsRequest(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"hi\"}]}}]}\n\n")
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL+"/"), WithModel("gemini-test"))
	temp := 0.4
	req := &Request{
		Contents:          ContentsFromTurns([]turns.Turn{turns.NewUserTurn(turns.NewTextPart("hello"))}),
		SystemInstruction: SystemInstruction("be nice"),
		GenerationConfig: &GenerationConfig{
			Temperature:    &temp,
			ThinkingConfig: &ThinkingConfig{ThinkingLevel: "low"},
		},
	}

	body, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	evs := drain(t, NewDecoder(body))
	assert.Equal(t, "hi", textOf(evs))

	assert.Equal(t, "/v1beta/models/gemini-test:streamGenerateContent", gotPath)
	assert.Equal(t, "alt=sse", gotQuery)
	assert.Equal(t, "secret", gotKey)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].(map[string]any)["role"])
	gc := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, 0.4, gc["temperature"])
	assert.Equal(t, "low", gc["thinkingConfig"].(map[string]any)["thinkingLevel"])
	_, hasTools := gotBody["tools"]
	assert.False(t, hasTools)
}

func TestClient_NonSuccessStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exhausted"}}`)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Stream(context.Background(), &Request{})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.Equal(t, "quota exhausted", te.Body)
	assert.Contains(t, te.Error(), "429")
}

func TestClient_ConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient("k", WithBaseURL(url), WithTimeout(2*time.Second))
	_, err := c.Stream(context.Background(), &Request{})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Stream(ctx, &Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransportError(err))
}

func TestClient_TimeoutDoesNotMutateSharedHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	c := NewClient("k", WithHTTPClient(shared), WithTimeout(2*time.Second))

	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
	assert.Equal(t, time.Minute, shared.Timeout)

	c = NewClient("k", WithHTTPClient(shared))
	assert.Same(t, shared, c.httpClient)
}

func TestContentsFromTurns(t *testing.T) {
	history := []turns.Turn{
		turns.NewUserTurn(turns.NewTextPart("I had a banana"), turns.NewInlineDataPart("image/png", []byte{0x1, 0x2})),
		turns.NewModelTurn(turns.NewToolCallPart("c1", "suggest_food_log", nil)),
		turns.NewUserTurn(turns.NewToolResultPart("c1", "suggest_food_log", "ok")),
		turns.NewModelTurn(turns.NewTextPart("")),
	}

	contents := ContentsFromTurns(history)
	require.Len(t, contents, 3, "empty turns are dropped")

	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MimeType)

	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, map[string]any{}, contents[1].Parts[0].FunctionCall.Args)

	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "suggest_food_log", fr.Name)
	assert.Equal(t, map[string]any{"result": "ok"}, fr.Response)

	b, err := json.Marshal(contents[0].Parts[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"inlineData":{"mimeType":"image/png","data":"AQI="}}`, string(b))
}

func TestContentsFromTurns_JoinsConsecutiveTurnsOfOneRole(t *testing.T) {
	contents := ContentsFromTurns([]turns.Turn{
		turns.NewUserTurn(turns.NewTextPart("Log my lunch")),
		turns.NewModelTurn(turns.NewToolCallPart("c1", "suggest_food_log", nil)),
		turns.NewUserTurn(turns.NewToolResultPart("c1", "suggest_food_log", map[string]any{"status": "awaiting_user_confirmation"})),
		turns.NewUserTurn(turns.NewTextPart("Actually make it two")),
	})
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[2].Role)
	require.Len(t, contents[2].Parts, 2)
	assert.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "Actually make it two", contents[2].Parts[1].Text)
}

func TestContentsFromTurns_EchoesThoughtSignature(t *testing.T) {
	call := turns.NewToolCallPart("c1", "get_user_plan", nil)
	call.ToolCall.ThoughtSignature = "c2lnLTE="
	contents := ContentsFromTurns([]turns.Turn{
		turns.NewModelTurn(call, turns.NewToolCallPart("c2", "query_food_log", nil)),
	})
	require.Len(t, contents, 1)

	b, err := json.Marshal(contents[0].Parts)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"functionCall":{"name":"get_user_plan"},"thoughtSignature":"c2lnLTE="},
		{"functionCall":{"name":"query_food_log"}}
	]`, string(b))
}

func TestToolsFromDescriptors_KeepsParameterOrder(t *testing.T) {
	ds := []tools.ToolDescriptor{{
		Name:        "log_workout",
		Description: "Log a workout",
		Parameters: []tools.Parameter{
			{Name: "type", Type: tools.ParamTypeString, Required: true},
			{Name: "duration", Type: tools.ParamTypeInteger, Required: true},
			{Name: "exercises", Type: tools.ParamTypeArray},
		},
	}}

	ts := ToolsFromDescriptors(ds)
	require.Len(t, ts, 1)
	require.Len(t, ts[0].FunctionDeclarations, 1)

	b, err := json.Marshal(ts[0])
	require.NoError(t, err)
	s := string(b)
	assert.Less(t, strings.Index(s, `"type":{`), strings.Index(s, `"duration":{`))
	assert.Less(t, strings.Index(s, `"duration":{`), strings.Index(s, `"exercises":{`))
	assert.Contains(t, s, `"required":["type","duration"]`)

	assert.Nil(t, ToolsFromDescriptors(nil))
}
