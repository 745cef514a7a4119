package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRequireAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name       string
		hash       string
		token      string
		wantStatus int
	}{
		{name: "matching token", hash: string(hash), token: "s3cret", wantStatus: http.StatusNoContent},
		{name: "wrong token", hash: string(hash), token: "guess", wantStatus: http.StatusUnauthorized},
		{name: "missing token", hash: string(hash), wantStatus: http.StatusUnauthorized},
		{name: "admin disabled", hash: "", token: "s3cret", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/pools/x/seal", nil)
			if tt.token != "" {
				req.Header.Set(HeaderAdminToken, tt.token)
			}
			rr := httptest.NewRecorder()
			RequireAdminToken(tt.hash, logger)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
