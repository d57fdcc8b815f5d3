package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTwilio(t *testing.T, handler http.HandlerFunc) *TwilioSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewTwilioSender("AC123", "secret", "+15550001111", nil)
	require.NotNil(t, s)
	s.baseURL = srv.URL
	s.backoff = func(int) time.Duration { return time.Millisecond }
	return s
}

func TestTwilioSenderSends(t *testing.T) {
	s := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+525512345678", r.PostForm.Get("To"))
		assert.Equal(t, "+15550001111", r.PostForm.Get("From"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})
	require.NoError(t, s.SendSMS(context.Background(), "+525512345678", "Hola"))
}

func TestTwilioSenderRetriesServerErrors(t *testing.T) {
	var calls int32
	s := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	require.NoError(t, s.SendSMS(context.Background(), "+525512345678", "Hola"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTwilioSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	s := testTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	})
	err := s.SendSMS(context.Background(), "bogus", "Hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 21211")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTwilioSenderValidation(t *testing.T) {
	assert.Nil(t, NewTwilioSender("", "", "+1", nil))
	s := NewTwilioSender("AC1", "tok", "+1", nil)
	assert.Error(t, s.SendSMS(context.Background(), "", "Hola"))
	assert.Error(t, s.SendSMS(context.Background(), "+1555", "  "))
}
