package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tillhq/till/internal/auth/blacklist"
	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/httpx"
	"github.com/tillhq/till/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *authtoken.Codec
	blacklist    blacklist.Blacklist
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store               store.Store
	SessionService      *service.SessionService
	TwoFactorService    *service.TwoFactorService
	VerificationService *service.VerificationService
	ResetService        *service.ResetService
}

func NewRouter(
	codec *authtoken.Codec,
	bl blacklist.Blacklist,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		blacklist:    bl,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerTwoFactor()
	r.registerVerification()
	r.registerReset()
	r.registerMe()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Sessions: r.SessionService}

	// POST /login - strict rate limit by IP (credential guessing surface)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit; rotation means clients hit this often
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /logout - authenticated, lenient
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.codec, r.blacklist),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactor: r.TwoFactorService}

	// POST /2fa/verify - strict rate limit by IP (code guessing surface);
	// the service keeps its own per-challenge attempt counter on top
	r.Mux.Handle("POST /v1/auth/2fa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /2fa/enroll - authenticated, moderate rate limit by user
	r.Mux.Handle("POST /v1/auth/2fa/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.AuthnMiddleware(r.codec, r.blacklist),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// POST /2fa/enable - authenticated, strict rate limit by user (live code check)
	r.Mux.Handle("POST /v1/auth/2fa/enable",
		httpx.Chain(http.HandlerFunc(h.HandleEnable),
			httpx.AuthnMiddleware(r.codec, r.blacklist),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	// POST /2fa/disable - authenticated, strict rate limit by user (live code check)
	r.Mux.Handle("POST /v1/auth/2fa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.codec, r.blacklist),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerVerification() {
	h := &VerificationHandler{Verification: r.VerificationService}

	// POST /verification/resend - strict rate limit by IP (outbound mail)
	r.Mux.Handle("POST /v1/auth/verification/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /verification/verify - strict rate limit by IP (code guessing surface)
	r.Mux.Handle("POST /v1/auth/verification/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerReset() {
	h := &ResetHandler{Resets: r.ResetService}

	// POST /password/forgot - strict rate limit by IP (outbound mail + enumeration)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /password/reset - strict rate limit by IP (token guessing surface)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMe() {
	h := &MeHandler{Store: r.store}

	// GET /me - authenticated, lenient rate limit by user
	r.Mux.Handle("GET /v1/me",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.codec, r.blacklist),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
