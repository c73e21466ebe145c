package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"kasirinaja/posclient/internal/connectivity"
	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/service"
	"kasirinaja/posclient/internal/session"
	"kasirinaja/posclient/internal/state"
	"kasirinaja/posclient/internal/syncer"
)

type Syncer interface {
	SwitchStore(ctx context.Context, storeID string) (*syncer.Run, error)
	Fetch(ctx context.Context) (*syncer.Run, bool)
	LoadCatalog(ctx context.Context) error
}

type Dependencies struct {
	Service      *service.Service
	Syncer       Syncer
	Session      *session.Session
	State        *state.State
	Connectivity *connectivity.Monitor
	Auth         *AuthManager
}

type API struct {
	service       *service.Service
	syncer        Syncer
	session       *session.Session
	state         *state.State
	connectivity  *connectivity.Monitor
	auth          *AuthManager
	allowedOrigin string
	pinLimiter    *attemptLimiter
}

func New(deps Dependencies, allowedOrigin string) *API {
	return &API{
		service:       deps.Service,
		syncer:        deps.Syncer,
		session:       deps.Session,
		state:         deps.State,
		connectivity:  deps.Connectivity,
		auth:          deps.Auth,
		allowedOrigin: allowedOrigin,
		pinLimiter:    newAttemptLimiter(8, time.Minute),
	}
}

// attemptLimiter keeps one token bucket per client. Each bucket holds max
// attempts and refills at max per window.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	every    rate.Limit
	now      func() time.Time
	limiters map[string]*rate.Limiter
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{
		max:      max,
		every:    rate.Every(window / time.Duration(max)),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.max)
		l.limiters[key] = limiter
	}
	now := l.now()
	l.mu.Unlock()
	return limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.withMiddleware)
	r.MethodNotAllowed(writeMethodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireAuth(domain.RoleCashier, domain.RoleManager, domain.RoleAdmin))

		r.Get("/session", a.handleSessionGet)
		r.Post("/session", a.handleSessionSwitch)
		r.Get("/products", a.handleProducts)
		r.Post("/cart/quote", a.handleQuote)
		r.Post("/checkout", a.handleCheckout)
		r.Post("/transactions/{id}/void", a.handleVoid)
		r.Post("/transactions/{id}/refund", a.handleRefund)
		r.Get("/offline-queue", a.handleOfflineQueue)
		r.Post("/offline-queue/replay", a.handleOfflineReplay)
		r.Post("/sync/refresh", a.handleRefresh)
		r.Post("/sync/catalog", a.handleCatalog)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleManager, domain.RoleAdmin))
			r.Get("/suppliers", readModel(a, "suppliers", a.state.Suppliers))
			r.Get("/purchase-orders", readModel(a, "purchase_orders", a.state.PurchaseOrders))
			r.Get("/stock-movements", readModel(a, "stock_movements", a.state.StockMovements))
		})
	})

	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"connectivity": a.connectivity.Status().String(),
		"at":           time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSessionGet(w http.ResponseWriter, _ *http.Request) {
	token := a.session.Token()
	resp := map[string]any{
		"store_id":     token.StoreID,
		"generation":   token.Generation,
		"connectivity": a.connectivity.Status().String(),
		"stores":       a.state.Stores(),
	}
	if summary, ok := a.state.Summary(); ok {
		resp["summary"] = summary
	}
	writeJSON(w, http.StatusOK, resp)
}

type switchStoreRequest struct {
	StoreID string `json:"store_id"`
}

func (a *API) handleSessionSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchStoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	run, err := a.syncer.SwitchStore(r.Context(), strings.TrimSpace(req.StoreID))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token := a.session.Token()
	resp := map[string]any{
		"store_id":      token.StoreID,
		"generation":    token.Generation,
		"fetch_started": run != nil,
	}
	if run != nil {
		resp["from_cache"] = run.FromCache
		if run.Err != nil {
			resp["warning"] = run.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// readModel serves a background-loaded collection of the active store.
func readModel[T any](a *API, name string, list func() []T) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		storeID := a.session.Token().StoreID
		if storeID == "" {
			writeServiceError(w, domain.ErrNoActiveStore)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"store_id": storeID, name: list()})
	}
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Quote(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

type reversalRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin,omitempty"`
}

func (a *API) handleVoid(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeReversal(w, r, "void")
	if !ok {
		return
	}
	resp, err := a.service.Void(r.Context(), domain.VoidRequest{
		TransactionID: chi.URLParam(r, "id"),
		Reason:        req.Reason,
		ManagerPIN:    req.ManagerPIN,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRefund(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeReversal(w, r, "refund")
	if !ok {
		return
	}
	resp, err := a.service.Refund(r.Context(), domain.RefundRequest{
		TransactionID: chi.URLParam(r, "id"),
		Reason:        req.Reason,
		ManagerPIN:    req.ManagerPIN,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) decodeReversal(w http.ResponseWriter, r *http.Request, kind string) (reversalRequest, bool) {
	var req reversalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return req, false
	}
	if strings.TrimSpace(req.ManagerPIN) != "" && !a.pinLimiter.Allow("pin:"+kind+":"+clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return req, false
	}
	return req, true
}

func (a *API) handleOfflineQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := a.service.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (a *API) handleOfflineReplay(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ReplayOffline(r.Context(), "")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if a.session.ActiveStoreID() == "" {
		writeServiceError(w, domain.ErrNoActiveStore)
		return
	}
	run, started := a.syncer.Fetch(r.Context())
	resp := map[string]any{"started": started}
	if started {
		resp["from_cache"] = run.FromCache
		if run.Err != nil {
			resp["warning"] = run.Err.Error()
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if err := a.syncer.LoadCatalog(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": len(a.state.Products())})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoActiveStore),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrPendingSync):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBackendRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses hide internals; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
		if status == http.StatusServiceUnavailable {
			msg = "commerce authority unavailable"
		}
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
