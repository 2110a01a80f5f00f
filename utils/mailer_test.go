package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendMailerSend(t *testing.T) {
	var gotAuth string
	var gotReq resendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg_123"})
	}))
	defer srv.Close()

	mailer := NewResendMailer("re_test_key", 5*time.Second)
	mailer.Endpoint = srv.URL

	id, err := mailer.Send(Email{
		From:     "hello@leadloop.agency",
		FromName: "Leadloop",
		To:       "jane@example.com",
		Subject:  "Hi Jane",
		HTML:     "<p>hello</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "Bearer re_test_key", gotAuth)
	assert.Equal(t, "Leadloop <hello@leadloop.agency>", gotReq.From)
	assert.Equal(t, []string{"jane@example.com"}, gotReq.To)
	assert.Equal(t, "Hi Jane", gotReq.Subject)
}

func TestResendMailerSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid to address"})
	}))
	defer srv.Close()

	mailer := NewResendMailer("re_test_key", 5*time.Second)
	mailer.Endpoint = srv.URL

	_, err := mailer.Send(Email{From: "a@b.com", To: "bad", Subject: "x", HTML: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid to address")
	assert.Contains(t, err.Error(), "bad")
}
