package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageParsesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/send", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "farmer-a", body["recipient_id"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"id":              "msg-1",
				"conversation_id": "buyer-b_farmer-a",
				"sender_id":       "buyer-b",
				"recipient_id":    "farmer-a",
				"content":         "hello",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	msg, err := client.SendMessage(context.Background(), "farmer-a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "buyer-b_farmer-a", msg.ConversationID)
}

func TestErrorEnvelopeSurfacesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error": map[string]string{
				"code":    "NOT_FOUND",
				"message": "Recipient not found",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.SendMessage(context.Background(), "nobody", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestGetHistoryUnwrapsPaginatedItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/history/farmer-a", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"items": []map[string]interface{}{
					{"id": "m1", "content": "first"},
					{"id": "m2", "content": "second"},
				},
				"total": 2,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	messages, err := client.GetHistory(context.Background(), "farmer-a", 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
}

func TestMarkAsReadUsesPatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/chat/mark-read/buyer-b_farmer-a", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.NoError(t, client.MarkAsRead(context.Background(), "buyer-b_farmer-a"))
}
