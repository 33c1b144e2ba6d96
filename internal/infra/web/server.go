package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/usecase"
)

// AccrualService is the slice of the accrual use case the API exposes.
type AccrualService interface {
	RunDaily(ctx context.Context, userID string, now time.Time) (*usecase.AccrualResult, error)
	RunWeekend(ctx context.Context, userID string, now time.Time) (*usecase.AccrualResult, error)
}

// PortalService backs the user-facing endpoints.
type PortalService interface {
	RegisterUser(ctx context.Context, phone string) (*model.User, error)
	CreateProduct(ctx context.Context, name string, price, dailyIncome decimal.Decimal, contractDays int, pool model.Pool) (*model.Product, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
	Purchase(ctx context.Context, userID, productID string, now time.Time) (string, error)
	OrdersByUser(ctx context.Context, userID string, pool model.Pool) ([]*model.Order, error)
	Balance(ctx context.Context, userID string) (*model.User, error)
}

// StatsService backs the admin stats endpoint.
type StatsService interface {
	Collect(ctx context.Context) (*usecase.Stats, error)
}

type Server struct {
	accrual AccrualService
	portal  PortalService
	stats   StatsService
	auth    *AuthManager
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(
	accrual AccrualService,
	portal PortalService,
	stats StatsService,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		accrual: accrual,
		portal:  portal,
		stats:   stats,
		auth:    auth,
		apiKey:  apiKey,
		log:     &srvLog,
	}
}

// Routes assembles the full router. Everything under /api/v1 except the
// admin login requires either the service bearer key (the portal
// backend) or an admin session cookie.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/admin/logout", s.handleAdminLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireCaller)

			r.Post("/accrual/run", s.handleAccrualRun)

			r.Post("/users", s.handleRegisterUser)
			r.Get("/users/{id}/balance", s.handleBalance)
			r.Get("/users/{id}/orders", s.handleOrders)

			r.Get("/products", s.handleListProducts)
			r.Post("/products", s.handleCreateProduct)
			r.Post("/orders", s.handlePurchase)

			r.Get("/stats", s.handleStats)
		})
	})

	return r
}

// requireCaller admits the trusted portal backend (bearer key) or a
// logged-in admin (session cookie).
func (s *Server) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.bearerOK(r) || s.auth.Verify(r) == nil {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *Server) bearerOK(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	key := strings.TrimPrefix(h, prefix)
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
