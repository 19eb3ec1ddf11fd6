package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dealtrack/agent"
	"dealtrack/auth"
	"dealtrack/config"
	"dealtrack/db"
	"dealtrack/transaction"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

// transactionService is the surface of transaction.Service used by handlers.
type transactionService interface {
	Create(ctx context.Context, params transaction.CreateParams) (transaction.Record, error)
	GetWithEstimate(ctx context.Context, id string) (transaction.Record, *transaction.FinancialBreakdown, error)
	List(ctx context.Context, filters transaction.Filters) (transaction.ListResult, error)
	UpdateStage(ctx context.Context, id string, target transaction.Stage) (transaction.Record, error)
	Cancel(ctx context.Context, id string) (transaction.Record, error)
	FastComplete(ctx context.Context, id string) (transaction.Record, error)
}

// agentService is the surface of agent.Service used by handlers.
type agentService interface {
	Create(ctx context.Context, params agent.CreateParams) (agent.Agent, error)
	GetByID(ctx context.Context, id string) (agent.Agent, error)
	List(ctx context.Context, limit int) ([]agent.Agent, error)
}

// authService is the surface of auth.Service used by handlers.
type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

// pinger is the slice of pgxpool.Pool the health handler needs.
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	txnService   transactionService
	agentService agentService
	authService  authService
	dbPinger     pinger
	prefix       string
	startedAt    time.Time
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	server := &Server{
		txnService:   transaction.NewService(pool, nil),
		agentService: agent.NewService(agent.NewRepository(pool)),
		authService:  auth.NewService(auth.NewRepository(pool), cfg.JWTSecret),
		dbPinger:     pool,
		prefix:       cfg.APIPrefix,
		startedAt:    time.Now(),
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("dealtrack api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.prefix+"/health", s.handleHealth)
	mux.HandleFunc(s.prefix+"/auth/register", s.handleRegister)
	mux.HandleFunc(s.prefix+"/auth/login", s.handleLogin)
	mux.HandleFunc(s.prefix+"/agents", s.requireAuth(s.handleAgents))
	mux.HandleFunc(s.prefix+"/agents/", s.requireAuth(s.handleAgentDetail))
	mux.HandleFunc(s.prefix+"/transactions", s.requireAuth(s.handleTransactions))
	mux.HandleFunc(s.prefix+"/transactions/", s.requireAuth(s.handleTransactionDetail))
	return mux
}

// requireAuth validates the bearer token and stashes the caller identity in
// the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, role, err := s.authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Seconds(),
		"database":  map[string]string{"status": "connected"},
	}
	if err := s.dbPinger.Ping(r.Context()); err != nil {
		payload["status"] = "error"
		payload["database"] = map[string]string{"status": "disconnected"}
		writeJSON(w, http.StatusServiceUnavailable, payload)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponseFrom(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  userResponseFrom(result.User),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		agents, err := s.agentService.List(r.Context(), limit)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		items := make([]agentResponse, 0, len(agents))
		for _, a := range agents {
			items = append(items, agentResponseFrom(a))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	case http.MethodPost:
		var req struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := s.agentService.Create(r.Context(), agent.CreateParams{
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, agentResponseFrom(created))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, s.prefix+"/agents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	a, err := s.agentService.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agentResponseFrom(a))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filters, err := parseListFilters(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		result, err := s.txnService.List(r.Context(), filters)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		items := make([]transactionResponse, 0, len(result.Items))
		for _, rec := range result.Items {
			items = append(items, transactionResponseFrom(rec, nil))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": result.Total})
	case http.MethodPost:
		if roleFrom(r) == auth.RoleClient {
			writeError(w, http.StatusForbidden, "clients cannot open transactions")
			return
		}
		var req struct {
			TotalServiceFee decimal.Decimal `json:"totalServiceFee"`
			Currency        string          `json:"currency"`
			ListingAgentID  string          `json:"listingAgentId"`
			SellingAgentID  string          `json:"sellingAgentId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := s.txnService.Create(r.Context(), transaction.CreateParams{
			TotalServiceFee: req.TotalServiceFee,
			Currency:        req.Currency,
			ListingAgentID:  req.ListingAgentID,
			SellingAgentID:  req.SellingAgentID,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, transactionResponseFrom(created, nil))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, s.prefix+"/transactions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rec, estimate, err := s.txnService.GetWithEstimate(r.Context(), parts[0])
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transactionResponseFrom(rec, estimate))
	case len(parts) == 2:
		s.handleTransactionAction(w, r, parts[0], parts[1])
	default:
		writeError(w, http.StatusBadRequest, "invalid transaction path")
	}
}

func (s *Server) handleTransactionAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if roleFrom(r) == auth.RoleClient {
		writeError(w, http.StatusForbidden, "clients cannot change transaction stage")
		return
	}

	var (
		rec transaction.Record
		err error
	)
	switch action {
	case "stage":
		var req struct {
			ToStage transaction.Stage `json:"toStage"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rec, err = s.txnService.UpdateStage(r.Context(), id, req.ToStage)
	case "cancel":
		rec, err = s.txnService.Cancel(r.Context(), id)
	case "fast-complete":
		rec, err = s.txnService.FastComplete(r.Context(), id)
	default:
		writeError(w, http.StatusNotFound, "unknown transaction action")
		return
	}

	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponseFrom(rec, nil))
}

func parseListFilters(r *http.Request) (transaction.Filters, error) {
	q := r.URL.Query()
	filters := transaction.Filters{
		Stage:   transaction.Stage(q.Get("stage")),
		AgentID: q.Get("agentId"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	for _, p := range []struct {
		key  string
		dest **time.Time
	}{
		{"fromDate", &filters.FromDate},
		{"toDate", &filters.ToDate},
	} {
		if raw := q.Get(p.key); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return transaction.Filters{}, fmt.Errorf("invalid %s: must be RFC3339", p.key)
			}
			*p.dest = &ts
		}
	}
	return filters, nil
}

// writeServiceError translates domain errors into HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var invalid *transaction.InvalidTransitionError
	switch {
	case errors.As(err, &invalid),
		errors.Is(err, transaction.ErrAlreadyCompleted),
		errors.Is(err, transaction.ErrCannotCompleteCanceled),
		errors.Is(err, transaction.ErrNegativeFee),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, transaction.ErrNotFound),
		errors.Is(err, agent.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		if strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "unknown stage") || strings.Contains(err.Error(), "missing id") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func roleFrom(r *http.Request) auth.Role {
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return role
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
