package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/atlas-erp/atlas-erp/internal/identity"
	internalshared "github.com/atlas-erp/atlas-erp/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// MiddlewareStack installs the shared middleware chain: request id, panic
// recovery, per-IP rate limiting, secure headers, identity extraction and
// request logging.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	limit := 240
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		limit = cfg.Config.RateLimitPerMinute
	}

	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		httprate.LimitByIP(limit, time.Minute),
		secureMiddleware.Handler,
		actorMiddleware,
		requestLogger(cfg.Logger),
	}
}

// actorMiddleware lifts the gateway identity headers into request context.
// An absent or unknown role leaves the context without an actor; the guards
// reject those requests on the gated routes.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(identity.HeaderActorID)
		role := identity.Role(r.Header.Get(identity.HeaderActorRole))
		if id != "" && role.Known() {
			r = r.WithContext(identity.ContextWithActor(r.Context(), identity.Actor{ID: id, Role: role}))
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// HeaderGuard enforces role requirements from the gateway identity headers.
// It implements identity.Guard.
type HeaderGuard struct {
	Logger *slog.Logger
}

// Authenticated requires any identified actor.
func (g HeaderGuard) Authenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := identity.ActorFromContext(r.Context())
			if actor.ID == "" {
				internalshared.RespondJSON(w, http.StatusUnauthorized,
					map[string]string{"error": "authentication required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require allows only the listed roles.
func (g HeaderGuard) Require(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := identity.ActorFromContext(r.Context())
			if actor.ID == "" {
				internalshared.RespondJSON(w, http.StatusUnauthorized,
					map[string]string{"error": "authentication required"})
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			if g.Logger != nil {
				g.Logger.Warn("role denied",
					slog.String("actor_id", actor.ID),
					slog.String("role", string(actor.Role)),
					slog.String("path", r.URL.Path))
			}
			internalshared.RespondJSON(w, http.StatusForbidden,
				map[string]string{"error": "insufficient role"})
		})
	}
}

var _ identity.Guard = HeaderGuard{}
