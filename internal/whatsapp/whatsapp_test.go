package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"wa_id": "2348012345678", "profile": {"name": "Ada"}}],
        "messages": [{
          "from": "2348012345678",
          "id": "wamid.abc",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "3 bedroom apartments in Lagos"}
        }]
      }
    }]
  }]
}`

const statusPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "statuses": [{"id": "wamid.abc", "status": "delivered"}]
      }
    }]
  }]
}`

func TestWebhookPayloadParsing(t *testing.T) {
	t.Run("TextMessage", func(t *testing.T) {
		var payload WebhookPayload
		require.NoError(t, json.Unmarshal([]byte(samplePayload), &payload))
		require.True(t, payload.IsMessageEvent())

		msgs := payload.InboundMessages()
		require.Len(t, msgs, 1)

		got := msgs[0]
		assert.Equal(t, "2348012345678", got.From)
		assert.Equal(t, "Ada", got.DisplayName)
		assert.Equal(t, "3 bedroom apartments in Lagos", got.Text)
		assert.Equal(t, "wamid.abc", got.MessageID)
		assert.Equal(t, time.Unix(1700000000, 0), got.ReceivedAt)
	})

	t.Run("StatusUpdateIsNotAMessageEvent", func(t *testing.T) {
		var payload WebhookPayload
		require.NoError(t, json.Unmarshal([]byte(statusPayload), &payload))

		assert.False(t, payload.IsMessageEvent())
		assert.Empty(t, payload.InboundMessages())
	})

	t.Run("MissingContactLeavesNameEmpty", func(t *testing.T) {
		var payload WebhookPayload
		require.NoError(t, json.Unmarshal([]byte(samplePayload), &payload))
		payload.Entry[0].Changes[0].Value.Contacts = nil

		msgs := payload.InboundMessages()
		require.Len(t, msgs, 1)
		assert.Empty(t, msgs[0].DisplayName)
	})
}

func TestVerifyHandshake(t *testing.T) {
	t.Run("ValidSubscribe", func(t *testing.T) {
		echo, ok := VerifyHandshake("subscribe", "secret", "challenge-123", "secret")
		require.True(t, ok)
		assert.Equal(t, "challenge-123", echo)
	})

	t.Run("WrongToken", func(t *testing.T) {
		_, ok := VerifyHandshake("subscribe", "wrong", "challenge-123", "secret")
		assert.False(t, ok)
	})

	t.Run("WrongMode", func(t *testing.T) {
		_, ok := VerifyHandshake("unsubscribe", "secret", "challenge-123", "secret")
		assert.False(t, ok)
	})

	t.Run("EmptyExpectedTokenNeverVerifies", func(t *testing.T) {
		_, ok := VerifyHandshake("subscribe", "", "challenge-123", "")
		assert.False(t, ok)
	})
}

func TestClientSendText(t *testing.T) {
	t.Run("SendsGraphAPIRequest", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody sendTextRequest

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "12345", "token-abc", zap.NewNop())
		id, err := client.SendText(context.Background(), "2348012345678", "hello")
		require.NoError(t, err)

		assert.Equal(t, "wamid.out", id)
		assert.Equal(t, "/12345/messages", gotPath)
		assert.Equal(t, "Bearer token-abc", gotAuth)
		assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
		assert.Equal(t, "2348012345678", gotBody.To)
		assert.Equal(t, "hello", gotBody.Text.Body)
	})

	t.Run("ErrorStatusSurfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "12345", "bad-token", zap.NewNop())
		_, err := client.SendText(context.Background(), "234", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("UnconfiguredClientIsNoOp", func(t *testing.T) {
		client := NewClient("https://graph.facebook.com/v18.0", "", "", zap.NewNop())
		require.False(t, client.Configured())

		id, err := client.SendText(context.Background(), "234", "hello")
		assert.NoError(t, err)
		assert.Empty(t, id)
	})
}
