package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pixelgrove/pixelgrove/internal/accounts/cache"
	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/internal/accounts/service"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store"
	"github.com/pixelgrove/pixelgrove/pkg/httpx"
	"github.com/pixelgrove/pixelgrove/pkg/slogx"

	_ "github.com/pixelgrove/pixelgrove/api/docs" // Swagger docs
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	baseURL      string
	startTime    time.Time
	logger       *slog.Logger
	validate     *validator.Validate

	store    store.Store
	sessions *cache.SessionCache

	AuthService *service.AuthService
	EmailSender service.EmailSender
}

func NewRouter(
	buildVersion, baseURL string,
	st store.Store,
	sessions *cache.SessionCache,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		baseURL:      baseURL,
		startTime:    time.Now(),
		logger:       logger,
		validate:     validator.New(),
		store:        st,
		sessions:     sessions,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Pixelgrove Accounts API
//	@version		0.1.0
//	@description	Account registration, session and token management for the
//	@description	Pixelgrove photo sharing service. Access and refresh tokens
//	@description	are HMAC-signed JWTs issued under a single service secret.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		EmailSender: r.EmailSender,
		BaseURL:     r.baseURL,
		Validate:    r.validate,
	}

	// Public signup and login take the strict limit keyed by IP to slow
	// down enumeration and brute force attempts.
	r.Mux.Handle("POST /api/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /api/auth/confirmed_email/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/request_email",
		httpx.Chain(http.HandlerFunc(h.HandleRequestEmail),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			RequireUser(r.AuthService),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		AuthService: r.AuthService,
		Store:       r.store,
		Validate:    r.validate,
	}

	r.Mux.Handle("GET /api/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			RequireUser(r.AuthService),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// Account moderation is reserved for staff roles.
	r.Mux.Handle("PATCH /api/users/{id}/active",
		httpx.Chain(http.HandlerFunc(h.HandleSetActive),
			RequireUser(r.AuthService),
			RequireRoles(service.NewRoleGate(domain.RoleAdmin, domain.RoleModerator)),
			httpx.RateLimitByIP(httpx.ModerateLimit),
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
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
