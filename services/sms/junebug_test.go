package smssvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitme/digit/testutil"
)

func TestNewJunebugClient(t *testing.T) {
	_, err := NewJunebugClient(Options{}, &testutil.Logger{})
	assert.Error(t, err)

	_, err = NewJunebugClient(Options{Fake: true}, &testutil.Logger{})
	assert.NoError(t, err)
}

func TestJunebugClient_Send_fake(t *testing.T) {
	logger := &testutil.Logger{}
	c, err := NewJunebugClient(Options{Fake: true}, logger)
	require.NoError(t, err)

	id, err := c.Send(context.Background(), "+27715597770", "test")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Len(t, logger.Messages("debug"), 1)
}

func TestJunebugClient_Send(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantID  string
		wantErr error
	}{
		{
			name:   "created",
			status: http.StatusCreated,
			body:   `{"status": 201, "code": "created", "description": "message submitted", "result": {"id": "abc-123"}}`,
			wantID: "abc-123",
		},
		{name: "rejected", status: http.StatusBadRequest, body: `{"status": 400}`, wantErr: ErrGateway},
		{name: "no id", status: http.StatusCreated, body: `{"status": 201, "result": {}}`, wantErr: ErrGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				user, pwd, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, "digit", user)
				assert.Equal(t, "s3cret", pwd)

				var msg map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
				assert.Equal(t, map[string]string{"to": "+27715597770", "from": "32323", "content": "test"}, msg)

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewJunebugClient(Options{URL: srv.URL, Username: "digit", Password: "s3cret", From: "32323"}, &testutil.Logger{})
			require.NoError(t, err)

			id, err := c.Send(context.Background(), "+27715597770", "test")
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)
		})
	}
}
