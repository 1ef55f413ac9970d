package emailsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitme/digit/core"
)

func newMessage(t *testing.T) *core.EmailMessage {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Mrs Dlamini", Address: "dlamini@school.co.za"}},
		Subject: "dig-it report March",
		Body:    "Please find attached reports of your dig-it classes for March.",
	}
	require.NoError(t, msg.Attach(strings.NewReader("name,answered\n"), "class_report.csv", "text/csv"))
	return msg
}

func TestConsoleService_Send(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	out := new(bytes.Buffer)
	svc := NewConsoleService(conf, log.New(out, "", 0))

	require.NoError(t, svc.Send(ctx, newMessage(t)))
	assert.Contains(t, out.String(), "Subject: dig-it report March")
	assert.Contains(t, out.String(), "From: \"dig-it\" <noreply@dig-it.me>")
	assert.Contains(t, out.String(), "attachment; filename=class_report.csv")

	assert.Equal(t, core.ErrNoRecipients, svc.Send(ctx, &core.EmailMessage{Body: "hi"}))
	require.NoError(t, svc.Send(ctx, &core.EmailMessage{To: []mail.Address{{Address: "a@b.co"}}}))

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "dig-it report March", sent[0].Subject)

	mock := NewConsoleServiceMock(conf)
	require.NoError(t, mock.Send(ctx, newMessage(t)))
	assert.Len(t, mock.SentMessages(), 1)
}

func TestSendgridService_Send(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "rejected", status: http.StatusBadRequest, wantErr: ErrDeliveryFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var payload map[string]interface{}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, sendgridEndpoint, r.URL.Path)
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
				body, _ := io.ReadAll(r.Body)
				assert.NoError(t, json.Unmarshal(body, &payload))
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			conf := core.NewTestConfig()
			conf.SendgridApiKey = "key"
			svc := NewSendgridService(conf, srv.URL)

			msg := newMessage(t)
			msg.From = &mail.Address{Address: conf.ReportFromEmail}
			err := svc.Send(context.Background(), msg)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}

			require.NotNil(t, payload)
			from := payload["from"].(map[string]interface{})
			assert.Equal(t, "info@dig-it.me", from["email"])
			attachments := payload["attachments"].([]interface{})
			require.Len(t, attachments, 1)
			assert.Equal(t, "class_report.csv", attachments[0].(map[string]interface{})["filename"])
		})
	}
}
