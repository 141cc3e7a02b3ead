package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/config"
)

func TestRender(t *testing.T) {
	html, err := Render("You were invited to **Apollo**.\n\n[Open](http://app.test/invitations)")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Apollo</strong>")
	assert.Contains(t, html, `<a href="http://app.test/invitations">Open</a>`)
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     any
		wantErr  bool
	}{
		{"", &LogMailer{}, false},
		{"log", &LogMailer{}, false},
		{"smtp", &SMTPMailer{}, false},
		{"resend", &ResendMailer{}, false},
		{"pigeon", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			m, err := New(config.MailConfig{Provider: tt.provider, SMTPHost: "localhost", SMTPPort: "25"}, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestResendMailer(t *testing.T) {
	var got resendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewResendMailer("Taskflow <no-reply@taskflow.test>", "re_key")
	m.endpoint = srv.URL

	err := m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hi", Markdown: "**bold**"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, []string{"ana@example.com"}, got.To)
	assert.Equal(t, "Hi", got.Subject)
	assert.Contains(t, got.HTML, "<strong>bold</strong>")
}

func TestResendMailerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m := NewResendMailer("no-reply@taskflow.test", "re_key")
	m.endpoint = srv.URL

	err := m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hi", Markdown: "x"})
	assert.ErrorContains(t, err, "status 422")
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "no-reply@taskflow.local", envelopeAddress("Taskflow <no-reply@taskflow.local>"))
	assert.Equal(t, "plain@example.com", envelopeAddress("plain@example.com"))
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME("a@example.com", "b@example.com", "Subject line", "<p>hi</p>"))
	assert.Contains(t, raw, "Subject: Subject line\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, "\r\n\r\n<p>hi</p>")
}
