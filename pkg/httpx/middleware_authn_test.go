package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillhq/till/internal/auth/blacklist"
	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/httpx"
)

type failingChecker struct{}

func (failingChecker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("registry down")
}

func newAuthnFixture(t *testing.T) (*authtoken.Codec, *blacklist.MemoryBlacklist, http.Handler) {
	t.Helper()

	codec, err := authtoken.NewCodec("0123456789abcdef0123456789abcdef", "till-auth")
	require.NoError(t, err)

	bl := blacklist.NewMemoryBlacklist()

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(httpx.UserIDFromContext(r.Context())))
	})

	return codec, bl, httpx.AuthnMiddleware(codec, bl)(echo)
}

func doAuthed(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthnMiddleware_AcceptsAccessToken(t *testing.T) {
	codec, _, h := newAuthnFixture(t)

	tok, err := codec.Issue(authtoken.Principal{ID: "u1", Role: "manager", ProjectID: "shop-1"}, authtoken.KindAccess, time.Minute)
	require.NoError(t, err)

	rec := doAuthed(h, tok.Raw)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", rec.Body.String(), "principal must flow into the request context")
}

func TestAuthnMiddleware_RejectsMissingOrMalformed(t *testing.T) {
	_, _, h := newAuthnFixture(t)

	require.Equal(t, http.StatusUnauthorized, doAuthed(h, "").Code)
	require.Equal(t, http.StatusUnauthorized, doAuthed(h, "garbage").Code)
}

func TestAuthnMiddleware_RejectsNonAccessKinds(t *testing.T) {
	codec, _, h := newAuthnFixture(t)

	for _, kind := range []authtoken.Kind{authtoken.KindRefresh, authtoken.KindTwoFactorTemp} {
		tok, err := codec.Issue(authtoken.Principal{ID: "u1"}, kind, time.Minute)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, doAuthed(h, tok.Raw).Code, "kind %s must not authenticate", kind)
	}
}

func TestAuthnMiddleware_RejectsRevokedToken(t *testing.T) {
	codec, bl, h := newAuthnFixture(t)

	tok, err := codec.Issue(authtoken.Principal{ID: "u1"}, authtoken.KindAccess, time.Minute)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, doAuthed(h, tok.Raw).Code)

	require.NoError(t, bl.Revoke(context.Background(), tok.Raw, tok.ExpiresAt))
	require.Equal(t, http.StatusUnauthorized, doAuthed(h, tok.Raw).Code)
}

func TestAuthnMiddleware_FailsClosedWhenRegistryDown(t *testing.T) {
	codec, err := authtoken.NewCodec("0123456789abcdef0123456789abcdef", "till-auth")
	require.NoError(t, err)

	h := httpx.AuthnMiddleware(codec, failingChecker{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tok, err := codec.Issue(authtoken.Principal{ID: "u1"}, authtoken.KindAccess, time.Minute)
	require.NoError(t, err)

	require.Equal(t, http.StatusServiceUnavailable, doAuthed(h, tok.Raw).Code)
}
