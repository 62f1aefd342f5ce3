package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/tillhq/till/internal/auth/blacklist"
	"github.com/tillhq/till/internal/auth/domain"
	"github.com/tillhq/till/internal/auth/notify"
	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/internal/auth/store/drivers/sqlite"
	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/cryptox"
	"github.com/tillhq/till/pkg/idx"
)

func TestMain(m *testing.M) {
	// Password hashing needs a pepper file before the first HashPassword call.
	pepperPath := filepath.Join(os.TempDir(), "till-http-test-pepper")
	cryptox.SetPepperPath(pepperPath)
	os.Remove(pepperPath)

	code := m.Run()

	os.Remove(pepperPath)
	os.Exit(code)
}

type dispatch struct {
	To       string
	Template notify.Template
	Payload  map[string]string
}

type recorderDispatcher struct {
	mu   sync.Mutex
	sent []dispatch
}

func (d *recorderDispatcher) Send(_ context.Context, to string, tmpl notify.Template, payload map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, dispatch{To: to, Template: tmpl, Payload: payload})
	return nil
}

func (d *recorderDispatcher) last(t *testing.T) dispatch {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.sent, "expected at least one dispatch")
	return d.sent[len(d.sent)-1]
}

func (d *recorderDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type routerEnv struct {
	Router     *Router
	Store      *sqlite.Store
	Codec      *authtoken.Codec
	Dispatcher *recorderDispatcher
	TwoFactor  *service.TwoFactorService
}

func newTestRouter(t *testing.T) *routerEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := authtoken.NewCodec("0123456789abcdef0123456789abcdef", "till-auth")
	require.NoError(t, err)

	bl := blacklist.NewMemoryBlacklist()
	disp := &recorderDispatcher{}

	sessions := &service.SessionService{
		Codec:        codec,
		Store:        st,
		Blacklist:    bl,
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		ChallengeTTL: 5 * time.Minute,
	}
	twoFactor := &service.TwoFactorService{
		Codec:     codec,
		Store:     st,
		Blacklist: bl,
		Attempts:  blacklist.NewMemoryAttempts(),
		Sessions:  sessions,
		Issuer:    "Till",
	}

	router := NewRouter(codec, bl, "test", st, slog.New(slog.DiscardHandler))
	router.SessionService = sessions
	router.TwoFactorService = twoFactor
	router.VerificationService = &service.VerificationService{
		Store:          st,
		Dispatcher:     disp,
		CodeTTL:        15 * time.Minute,
		ResendInterval: 0,
		MaxAttempts:    3,
	}
	router.ResetService = &service.ResetService{
		Store:      st,
		Dispatcher: disp,
		TokenTTL:   time.Hour,
		ResetURL:   "https://till.example/reset",
	}
	router.ApplyRoutes()

	return &routerEnv{
		Router:     router,
		Store:      st,
		Codec:      codec,
		Dispatcher: disp,
		TwoFactor:  twoFactor,
	}
}

func (e *routerEnv) seedUser(t *testing.T, projectID, email, password string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Role:         "manager",
		ProjectID:    projectID,
		PasswordHash: hash,
	}
	require.NoError(t, e.Store.Users().CreateUser(context.Background(), u))
	return u
}

// do sends a JSON request through the full router, middleware included.
func (e *routerEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (e *routerEnv) login(t *testing.T, projectID, email, password string) (access, refresh string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"projectId": projectID,
		"email":     email,
		"password":  password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	access, _ = body["access_token"].(string)
	refresh, _ = body["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestRouter(t)
	env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
		"password":  "hunter2hunter2",
	}, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.Equal(t, "Bearer", body["token_type"])
	require.Greater(t, body["expires_in"], float64(0))
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	env := newTestRouter(t)
	env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
		"password":  "wrong-password",
	}, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_credentials", decodeBody(t, rec)["error"])
}

func TestLoginEndpoint_MalformedBody(t *testing.T) {
	env := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
}

func TestRefreshRotationEndpoint(t *testing.T) {
	env := newTestRouter(t)
	env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")
	_, refresh := env.login(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, decodeBody(t, rec)["access_token"])

	// The rotated-out token is dead; replaying it is rejected.
	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token_revoked", decodeBody(t, rec)["error"])
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestRouter(t)
	env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")
	access, refresh := env.login(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodPost, "/v1/auth/logout", map[string]string{
		"refresh_token": refresh,
	}, access)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Both halves of the session are now dead.
	rec = env.do(t, http.MethodGet, "/v1/me", nil, access)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	env := newTestRouter(t)
	user := env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")
	access, _ := env.login(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodGet, "/v1/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	require.Equal(t, user.ID, body["id"])
	require.Equal(t, "owner@shop.test", body["email"])
	require.Equal(t, "manager", body["role"])
	require.Equal(t, "proj-1", body["projectId"])
	require.Equal(t, false, body["two_factor_enabled"])
}

func TestMeEndpoint_RequiresToken(t *testing.T) {
	env := newTestRouter(t)

	rec := env.do(t, http.MethodGet, "/v1/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestTwoFactorChallengeFlow(t *testing.T) {
	env := newTestRouter(t)
	env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")
	access, _ := env.login(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	// Enroll and enable over HTTP.
	rec := env.do(t, http.MethodPost, "/v1/auth/2fa/enroll", map[string]string{}, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	secret, _ := decodeBody(t, rec)["secret"].(string)
	require.NotEmpty(t, secret)

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/v1/auth/2fa/enable", map[string]string{"code": code}, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recoveryCodes, _ := decodeBody(t, rec)["recovery_codes"].([]any)
	require.Len(t, recoveryCodes, 10)

	// A fresh login now stops at the challenge.
	rec = env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
		"password":  "hunter2hunter2",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "challenge_required", body["error"])
	challenge, _ := body["challenge_token"].(string)
	require.NotEmpty(t, challenge)

	// A wrong code is rejected without burning the challenge.
	rec = env.do(t, http.MethodPost, "/v1/auth/2fa/verify", map[string]string{
		"challenge_token": challenge,
		"method":          "totp",
		"code":            "000000",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_code", decodeBody(t, rec)["error"])

	// The right code completes the session.
	code, err = totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/v1/auth/2fa/verify", map[string]string{
		"challenge_token": challenge,
		"method":          "totp",
		"code":            code,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, decodeBody(t, rec)["access_token"])
}

func TestAuthenticatedEndpoints_SubjectGone(t *testing.T) {
	env := newTestRouter(t)

	// A well-signed access token whose user no longer exists reads as
	// invalid, not as a server fault.
	ghost := authtoken.Principal{ID: idx.New().String(), Role: "manager", ProjectID: "proj-1"}
	tok, err := env.Codec.Issue(ghost, authtoken.KindAccess, 15*time.Minute)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/v1/me", nil, tok.Raw)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_token", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/v1/auth/2fa/enroll", map[string]string{}, tok.Raw)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_token", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/v1/auth/2fa/disable", map[string]string{"code": "000000"}, tok.Raw)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_token", decodeBody(t, rec)["error"])
}

func TestVerificationEndpoints(t *testing.T) {
	env := newTestRouter(t)
	user := env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodPost, "/v1/auth/verification/resend", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
	}, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	code := env.Dispatcher.last(t).Payload["code"]
	require.Len(t, code, 6)

	rec = env.do(t, http.MethodPost, "/v1/auth/verification/verify", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
		"code":      "000000",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_code", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/v1/auth/verification/verify", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
		"code":      code,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := env.Store.Users().GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
}

func TestPasswordResetEndpoints(t *testing.T) {
	env := newTestRouter(t)
	env.seedUser(t, "proj-1", "owner@shop.test", "hunter2hunter2")

	rec := env.do(t, http.MethodPost, "/v1/auth/password/forgot", map[string]string{
		"projectId": "proj-1",
		"email":     "owner@shop.test",
	}, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	link, err := url.Parse(env.Dispatcher.last(t).Payload["link"])
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	rec = env.do(t, http.MethodPost, "/v1/auth/password/reset", map[string]string{
		"token":        token,
		"new_password": "a-better-password",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The new password works and the token is spent.
	env.login(t, "proj-1", "owner@shop.test", "a-better-password")

	rec = env.do(t, http.MethodPost, "/v1/auth/password/reset", map[string]string{
		"token":        token,
		"new_password": "yet-another-password",
	}, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "already_used", decodeBody(t, rec)["error"])
}

func TestForgotPassword_UnknownEmailIsGeneric(t *testing.T) {
	env := newTestRouter(t)

	rec := env.do(t, http.MethodPost, "/v1/auth/password/forgot", map[string]string{
		"projectId": "proj-1",
		"email":     "nobody@shop.test",
	}, "")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Zero(t, env.Dispatcher.count())
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestRouter(t)

	rec := env.do(t, http.MethodGet, "/livez", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/readyz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}
