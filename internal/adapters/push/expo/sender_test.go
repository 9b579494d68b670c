package expo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stray-match/internal/ports/push"
)

func TestSend_PostsBatchOfOne(t *testing.T) {
	var got []push.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"t-1"}]}`))
	}))
	defer srv.Close()

	s, err := NewSender(Config{BaseURL: srv.URL, AccessToken: "tok"})
	require.NoError(t, err)
	require.True(t, s.Available())

	err = s.Send(context.Background(), push.Message{
		To:    "ExponentPushToken[abc]",
		Title: "Possible match for Whiskers (87% confidence)",
		Data:  map[string]string{"type": "match"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ExponentPushToken[abc]", got[0].To)
	assert.Equal(t, "match", got[0].Data["type"])
}

func TestSend_TicketErrorIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer srv.Close()

	s, err := NewSender(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	err = s.Send(context.Background(), push.Message{To: "ExponentPushToken[x]"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "DeviceNotRegistered")
}

func TestSend_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewSender(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), push.Message{To: "x"}))
}

func TestSend_CancelledContextWaitsNoMore(t *testing.T) {
	s, err := NewSender(Config{BaseURL: "http://127.0.0.1:1", RPS: 1, Burst: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Send(ctx, push.Message{To: "x"}))
}
