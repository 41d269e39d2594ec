package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/console/handler"
	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
	"github.com/xela07ax/reflections-auth/internal/policy"
)

// Handlers — обработчики бизнес-доменов
type Handlers struct {
	Auth   *handler.AuthHandler   // /auth
	Users  *handler.UserHandler   // /users
	Audit  *handler.AuditHandler  // /users/audit
	Health *handler.HealthHandler // /health, /actuator
}

type Server struct {
	router        *chi.Mux
	logger        *zap.Logger
	cfg           *infra.Config
	metrics       *infra.Metrics
	authenticator *auth.Authenticator
	enforcer      *policy.Enforcer
	owners        policy.OwnerLookup
	limiter       *ipLimiter
	h             Handlers
}

// New собирает HTTP API сервиса аутентификации со всеми зависимостями
func New(
	cfg *infra.Config,
	logger *zap.Logger,
	metrics *infra.Metrics,
	authenticator *auth.Authenticator,
	owners policy.OwnerLookup,
	h Handlers,
) *Server {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	logger = logger.Named("http")

	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger,
		cfg:           cfg,
		metrics:       metrics,
		authenticator: authenticator,
		enforcer:      policy.NewEnforcer(logger, handler.ErrorWriter(logger)),
		owners:        owners,
		limiter:       newIPLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst, 10*time.Minute),
		h:             h,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observe(s.logger, s.metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(audit.Middleware)

	// --- 2. Фильтр bearer-токена: выполняется для каждого запроса, решение об отказе — ниже ---
	r.Use(s.authenticator.Middleware)

	authenticated := s.enforcer.Require(policy.Authenticated())
	adminOnly := s.enforcer.Require(policy.HasRole(domain.RoleAdmin))
	ownerOnly := s.enforcer.Require(policy.Owner(s.owners, "id"))

	// --- 3. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", s.h.Health.Live)
	r.Get("/health/ready", s.h.Health.Ready)
	r.Get("/actuator/version", s.h.Health.Version)

	r.Route("/auth", func(r chi.Router) {
		// Вход и регистрация ограничены по IP
		r.Use(s.limiter.middleware(s.logger))
		r.Post("/signup", s.h.Auth.Signup)
		r.Post("/login", s.h.Auth.Login)
		r.Post("/refresh-token", s.h.Auth.Refresh)
	})

	// --- 4. Учетные записи: у каждой операции своя политика ---
	r.Route("/users", func(r chi.Router) {
		r.Get("/is-email-available/{email}", s.h.Users.IsEmailAvailable)

		r.With(authenticated).Get("/me", s.h.Users.Me)
		r.With(authenticated).Get("/id/{id}", s.h.Users.GetByID)
		r.With(authenticated).Get("/email/{email}", s.h.Users.GetByEmail)

		r.With(ownerOnly).Post("/id/{id}/update", s.h.Users.UpdateSelf)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", s.h.Users.List)
			r.Get("/audit", s.h.Audit.GetLogs)
			r.Post("/set-role/{email}/{role}", s.h.Users.SetRole)
			r.Post("/activate/{email}/{activated}", s.h.Users.Activate)
			r.Post("/lock/{email}/{locked}", s.h.Users.Lock)
			r.Delete("/id/{id}", s.h.Users.Delete)
		})
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
