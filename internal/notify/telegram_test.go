package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDisablesLinkPreview(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	bot := NewTelegramBot("bot-token", srv.URL)
	require.NoError(t, bot.Send(context.Background(), 42, "hello"))

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.EqualValues(t, 42, payload["chat_id"])
	assert.Equal(t, "hello", payload["text"])
	assert.Equal(t, true, payload["disable_web_page_preview"])
}

func TestSendSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegramBot("t", srv.URL).Send(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestGetUpdatesParsesChatsAndAdvancesOffset(t *testing.T) {
	var gotOffset string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.URL.Query().Get("offset")
		w.Write([]byte(`{
			"ok": true,
			"result": [
				{"update_id": 7, "message": {"chat": {"id": 100}}},
				{"update_id": 8, "callback_query": {"message": {"chat": {"id": 200}}}},
				{"update_id": 9, "edited_message": {"chat": {"id": 300}}}
			]
		}`))
	}))
	defer srv.Close()

	bot := NewTelegramBot("t", srv.URL)
	chatIDs, next, err := bot.GetUpdates(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, "5", gotOffset)
	assert.Equal(t, []int64{100, 200}, chatIDs, "only messages and callback queries contribute chats")
	assert.Equal(t, 10, next, "next offset acknowledges everything received")
}

func TestGetUpdatesEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("offset"), "zero offset is omitted")
		w.Write([]byte(`{"ok": true, "result": []}`))
	}))
	defer srv.Close()

	chatIDs, next, err := NewTelegramBot("t", srv.URL).GetUpdates(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, chatIDs)
	assert.Zero(t, next)
}
