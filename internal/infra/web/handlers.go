package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pharmacy-invest-ledger/internal/domain"
	"pharmacy-invest-ledger/internal/domain/model"
	"pharmacy-invest-ledger/internal/infra/logging"
	"pharmacy-invest-ledger/internal/infra/metrics"
)

// ===== JSON plumbing =====

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "insufficient balance")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ===== Admin session =====

type adminLoginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ===== Accrual trigger =====

type accrualRunRequest struct {
	UserID string `json:"user_id"`
	// Pool is "regular", "weekend" or empty for both.
	Pool string `json:"pool,omitempty"`
}

type accrualRunResponse struct {
	Pool      string `json:"pool"`
	Payout    string `json:"payout"`
	Credited  int    `json:"credited"`
	Completed int    `json:"completed"`
	Ok        bool   `json:"ok"`
}

// handleAccrualRun is the opportunistic per-user trigger. Pass failures
// are logged and reported per pool but never fail the request; the
// nightly sweep picks up whatever was missed.
func (s *Server) handleAccrualRun(w http.ResponseWriter, r *http.Request) {
	var req accrualRunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	pools := []model.Pool{model.PoolRegular, model.PoolWeekend}
	switch req.Pool {
	case "":
	case string(model.PoolRegular):
		pools = []model.Pool{model.PoolRegular}
	case string(model.PoolWeekend):
		pools = []model.Pool{model.PoolWeekend}
	default:
		writeError(w, http.StatusBadRequest, "unknown pool")
		return
	}

	now := time.Now()
	l := logging.With(r.Context(), s.log)

	out := make([]accrualRunResponse, 0, len(pools))
	for _, pool := range pools {
		run := s.accrual.RunDaily
		if pool == model.PoolWeekend {
			run = s.accrual.RunWeekend
		}

		res, err := run(r.Context(), req.UserID, now)
		if err != nil {
			l.Error().Err(err).
				Str("pool", string(pool)).
				Str("user_id", req.UserID).
				Msg("triggered accrual failed")
			metrics.IncAccrualRun(string(pool), "failed")
			out = append(out, accrualRunResponse{Pool: string(pool), Payout: "0", Ok: false})
			continue
		}

		if res.Credited > 0 {
			metrics.IncAccrualRun(string(pool), "credited")
			metrics.AddAccrualPayout(string(pool), res.Payout.InexactFloat64())
			metrics.AddOrdersCompleted(string(pool), res.Completed)
		} else {
			metrics.IncAccrualRun(string(pool), "noop")
		}
		out = append(out, accrualRunResponse{
			Pool:      string(pool),
			Payout:    res.Payout.String(),
			Credited:  res.Credited,
			Completed: res.Completed,
			Ok:        true,
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"results": out})
}

// ===== Users =====

type registerUserRequest struct {
	Phone string `json:"phone"`
}

type userResponse struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	Balance     string `json:"balance"`
	TotalIncome string `json:"total_income"`
	DailyIncome string `json:"daily_income"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Phone:       u.Phone,
		Balance:     u.Balance.String(),
		TotalIncome: u.TotalIncome.String(),
		DailyIncome: u.DailyIncome.String(),
	}
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	u, err := s.portal.RegisterUser(r.Context(), req.Phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := s.portal.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ===== Orders =====

type orderResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	DailyIncome   string    `json:"daily_income"`
	RemainingDays int       `json:"remaining_days"`
	PurchaseDate  time.Time `json:"purchase_date"`
	Status        string    `json:"status"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pool := model.PoolRegular
	switch q := r.URL.Query().Get("pool"); q {
	case "", string(model.PoolRegular):
	case string(model.PoolWeekend):
		pool = model.PoolWeekend
	default:
		writeError(w, http.StatusBadRequest, "unknown pool")
		return
	}

	orders, err := s.portal.OrdersByUser(r.Context(), id, pool)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse{
			ID:            o.ID,
			ProductID:     o.ProductID,
			DailyIncome:   o.DailyIncome.String(),
			RemainingDays: o.RemainingDays,
			PurchaseDate:  o.PurchaseDate,
			Status:        string(o.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": out})
}

type purchaseRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	orderID, err := s.portal.Purchase(r.Context(), req.UserID, req.ProductID, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"order_id": orderID})
}

// ===== Products =====

type createProductRequest struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	DailyIncome  string `json:"daily_income"`
	ContractDays int    `json:"contract_days"`
	Pool         string `json:"pool"`
}

type productResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	DailyIncome  string `json:"daily_income"`
	ContractDays int    `json:"contract_days"`
	Pool         string `json:"pool"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price.String(),
		DailyIncome:  p.DailyIncome.String(),
		ContractDays: p.ContractDays,
		Pool:         string(p.Pool),
	}
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad price")
		return
	}
	dailyIncome, err := decimal.NewFromString(req.DailyIncome)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad daily_income")
		return
	}

	p, err := s.portal.CreateProduct(r.Context(), req.Name, price, dailyIncome, req.ContractDays, model.Pool(req.Pool))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.portal.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": out})
}

// ===== Stats =====

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Collect(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
