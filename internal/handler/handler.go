package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/mtlprog/helpdesk/internal/handler/dto"
	"github.com/mtlprog/helpdesk/internal/metrics"
	"github.com/mtlprog/helpdesk/internal/middleware"
	"github.com/mtlprog/helpdesk/internal/service"
)

// ChamadoEngine is the chamado lifecycle as seen by the HTTP layer.
type ChamadoEngine interface {
	Create(ctx context.Context, p service.CreateChamadoParams) (*domain.Chamado, error)
	UpdateSituacao(ctx context.Context, id int64, p service.UpdateSituacaoParams, actor *domain.User) (*domain.Chamado, error)
	TransferChamado(ctx context.Context, id int64, p service.TransferParams, actor *domain.User) (*domain.Chamado, error)
	CancelChamadoSituacao(ctx context.Context, id int64, solicitante *domain.Solicitante) (*domain.Chamado, error)
	GetForSolicitante(ctx context.Context, id int64, solicitante *domain.Solicitante) (*domain.Chamado, error)
	ListBySolicitante(ctx context.Context, solicitante *domain.Solicitante, p service.ListParams) (*service.Page, error)
	ListByUser(ctx context.Context, user *domain.User, p service.ListParams) (*service.Page, error)
}

// SignIner issues access tokens for staff users.
type SignIner interface {
	SignIn(ctx context.Context, username, password string) (*service.SignInResult, error)
}

// SetorLister lists the setor catalog.
type SetorLister interface {
	List(ctx context.Context) ([]domain.Setor, error)
}

// Pinger checks that the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps groups the collaborators of Handler. Websocket may be nil.
type Deps struct {
	Chamados  ChamadoEngine
	Auth      SignIner
	Setores   SetorLister
	Stats     StatsReader
	DB        Pinger
	Guard     *middleware.AuthMiddleware
	Websocket http.Handler
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	chamados  ChamadoEngine
	auth      SignIner
	setores   SetorLister
	stats     StatsReader
	db        Pinger
	guard     *middleware.AuthMiddleware
	websocket http.Handler
	now       func() time.Time
}

// New creates a new Handler instance with all dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		chamados:  deps.Chamados,
		auth:      deps.Auth,
		setores:   deps.Setores,
		stats:     deps.Stats,
		db:        deps.DB,
		guard:     deps.Guard,
		websocket: deps.Websocket,
		now:       time.Now,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check and metrics
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.Handle("GET /metrics", metrics.Handler())

	// Public routes
	mux.HandleFunc("POST /api/v1/chamado", h.handleCreateChamado)
	mux.HandleFunc("POST /api/v1/auth/signin", h.handleSignIn)
	mux.HandleFunc("GET /api/v1/setor", h.handleListSetores)

	// Solicitante routes
	mux.Handle("GET /api/v1/chamado", h.guard.SolicitanteAuth(http.HandlerFunc(h.handleListOwnChamados)))
	mux.Handle("GET /api/v1/chamado/{id}", h.guard.SolicitanteAuth(http.HandlerFunc(h.handleGetChamado)))
	mux.Handle("DELETE /api/v1/chamado/{id}", h.guard.SolicitanteAuth(http.HandlerFunc(h.handleCancelChamado)))

	// Staff routes
	mux.Handle("GET /api/v1/chamado/user", h.guard.StaffAuth(http.HandlerFunc(h.handleListUserChamados)))
	mux.Handle("GET /api/v1/chamado/stats", h.guard.StaffAuth(http.HandlerFunc(h.handleGetStats)))
	mux.Handle("PUT /api/v1/chamado/{id}/situacao", h.guard.StaffAuth(http.HandlerFunc(h.handleUpdateSituacao)))
	if h.websocket != nil {
		mux.Handle("GET /api/v1/ws/chamados", h.guard.StaffAuth(h.websocket))
	}
}

// Routes returns the instrumented router.
func (h *Handler) Routes() http.Handler {
	metrics.Register()

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return metrics.Instrument(mux)
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps a service error onto the standard error response.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// decodeAndValidate reads a JSON body into req and runs its validation.
// Returns false if the request was rejected (error already sent to client).
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req dto.Validator) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

// extractChamadoID extracts and validates chamado ID from path parameter.
// Returns (id, true) if valid, (0, false) if invalid (error already sent to client).
func extractChamadoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "chamado id must be a positive integer")
		return 0, false
	}
	return id, true
}
