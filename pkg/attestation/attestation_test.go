package attestation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		complete bool
		wantErr  bool
	}{
		{"complete", http.StatusOK, `{"attestation":"0xdeadbeef","status":"complete"}`, true, false},
		{"pending", http.StatusOK, `{"attestation":"PENDING","status":"pending_confirmations"}`, false, false},
		{"not found", http.StatusNotFound, `{"error":"Message hash not found"}`, false, false},
		{"server error", http.StatusInternalServerError, ``, false, true},
		{"garbage", http.StatusOK, `{`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/attestations/0xabc", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			a, err := NewClient(server.URL).Fetch(context.Background(), "0xabc")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.complete, a.Complete())
		})
	}
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestWithHTTPClient(t *testing.T) {
	var paths []string
	c := NewClient("http://iris.test/", WithHTTPClient(doerFunc(func(req *http.Request) (*http.Response, error) {
		paths = append(paths, req.URL.Path)
		rec := httptest.NewRecorder()
		_, _ = rec.WriteString(`{"attestation":"0xdeadbeef","status":"complete"}`)
		return rec.Result(), nil
	})))

	a, err := c.Fetch(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, a.Complete())
	assert.Equal(t, []string{"/attestations/0xabc"}, paths)

	refused := errors.New("connection refused")
	c = NewClient("", WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, refused
	})))
	_, err = c.Fetch(context.Background(), "0xabc")
	assert.ErrorIs(t, err, refused)
}
