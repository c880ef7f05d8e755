package pool

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"pool-gatekeeper/pool/application"
	"pool-gatekeeper/pool/domain"
)

// Options configura o handler HTTP do gatekeeper.
type Options struct {
	Coordinator *application.Coordinator

	// RetryAfter é o valor do header Retry-After quando o store está
	// indisponível (503). Se 0, usa 1s.
	RetryAfter time.Duration
}

// NewHandler monta as rotas do gatekeeper:
//
//	POST /v1/pool               despacho por action (acquire/release/status)
//	GET  /v1/pool/status        status agregado (?resource_id=N ou todos)
//	GET  /healthz
//
// O POST único com campo action replica o contrato que os orquestradores já
// falam; o GET existe para observabilidade humana.
func NewHandler(opts Options) http.Handler {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}

	h := &handler{coord: opts.Coordinator, retryAfter: opts.RetryAfter}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/pool", h.dispatch)
	mux.HandleFunc("GET /v1/pool/status", h.status)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

type handler struct {
	coord      *application.Coordinator
	retryAfter time.Duration
}

type poolRequest struct {
	Action     string `json:"action"`
	ResourceID int    `json:"resource_id"`
	RunID      string `json:"run_id"`
	OwnerID    string `json:"owner_id"`
	Label      string `json:"label"`

	// Grau pedido como inteiro, ou um hint Oracle de onde extrair
	// (ex: "/*+ PARALLEL(8) FULL(A) */"). O inteiro ganha se ambos vierem.
	RequestedParallelism int    `json:"requested_parallelism"`
	ParallelHint         string `json:"parallel_hint"`
}

type acquireResponse struct {
	Allowed              bool   `json:"allowed"`
	GrantedParallelism   int    `json:"granted_parallelism,omitempty"`
	Downgraded           bool   `json:"downgraded,omitempty"`
	RequestedParallelism int    `json:"requested_parallelism,omitempty"`
	AdjustedHint         string `json:"adjusted_hint,omitempty"`
	WaitSeconds          int    `json:"wait_seconds,omitempty"`
	QueuePosition        int    `json:"queue_position,omitempty"`
	Reason               string `json:"reason,omitempty"`
	CurrentUsage         int    `json:"current_usage"`
	Available            int    `json:"available"`
}

type releaseResponse struct {
	Released            bool `json:"released"`
	ReleasedParallelism int  `json:"released_parallelism"`
	CurrentUsage        int  `json:"current_usage"`
}

type statusResponse struct {
	ResourceID     int                 `json:"resource_id"`
	Name           string              `json:"name,omitempty"`
	MaxConnections int                 `json:"max_connections"`
	Threshold      int                 `json:"threshold"`
	CurrentUsage   int                 `json:"current_usage"`
	Available      int                 `json:"available"`
	ActiveCount    int                 `json:"active_count"`
	Active         []activeReservation `json:"active,omitempty"`
}

type activeReservation struct {
	RunID       string    `json:"run_id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Label       string    `json:"label,omitempty"`
	Parallelism int       `json:"parallelism"`
	StartedAt   time.Time `json:"started_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type summaryResponse struct {
	Sources   []statusResponse `json:"sources"`
	Timestamp time.Time        `json:"timestamp"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req poolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed_body", Detail: err.Error()})
		return
	}

	switch req.Action {
	case "acquire":
		h.acquire(w, r, req)
	case "release":
		h.release(w, r, req)
	case "status":
		h.statusAction(w, r, req)
	default:
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "unknown_action",
			Detail: "valid actions: acquire, release, status",
		})
	}
}

func (h *handler) acquire(w http.ResponseWriter, r *http.Request, req poolRequest) {
	requested := req.RequestedParallelism
	if requested == 0 && req.ParallelHint != "" {
		requested = ParseParallelHint(req.ParallelHint, 0)
	}

	dec, err := h.coord.Acquire(r.Context(), application.AcquireRequest{
		ResourceID: req.ResourceID,
		RunID:      req.RunID,
		OwnerID:    req.OwnerID,
		Label:      req.Label,
		Parallel:   requested,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := acquireResponse{
		Allowed:       dec.Allowed,
		Reason:        dec.Reason,
		CurrentUsage:  dec.CurrentUsage,
		Available:     dec.Available,
		WaitSeconds:   dec.WaitSeconds,
		QueuePosition: dec.QueuePosition,
	}
	if dec.Allowed {
		resp.GrantedParallelism = dec.Parallel
		if dec.Downgraded {
			resp.Downgraded = true
			resp.RequestedParallelism = dec.RequestedParallel
			if req.ParallelHint != "" {
				resp.AdjustedHint = AdjustParallelHint(req.ParallelHint, dec.Parallel)
			}
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) release(w http.ResponseWriter, r *http.Request, req poolRequest) {
	res, err := h.coord.Release(r.Context(), req.ResourceID, req.RunID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, releaseResponse{
		Released:            res.Released,
		ReleasedParallelism: res.Parallel,
		CurrentUsage:        res.CurrentUsage,
	})
}

func (h *handler) statusAction(w http.ResponseWriter, r *http.Request, req poolRequest) {
	if req.ResourceID > 0 {
		st, err := h.coord.Status(r.Context(), req.ResourceID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toStatusResponse(st))
		return
	}
	h.summary(w, r)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("resource_id")
	if raw == "" {
		h.summary(w, r)
		return
	}

	resourceID, err := strconv.Atoi(raw)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Detail: "resource_id must be an integer"})
		return
	}

	st, err := h.coord.Status(r.Context(), resourceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toStatusResponse(st))
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	all, err := h.coord.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := summaryResponse{Sources: make([]statusResponse, 0, len(all)), Timestamp: time.Now().UTC()}
	for _, st := range all {
		resp.Sources = append(resp.Sources, toStatusResponse(st))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func toStatusResponse(st application.ResourceStatus) statusResponse {
	resp := statusResponse{
		ResourceID:     st.ResourceID,
		Name:           st.Name,
		MaxConnections: st.MaxConnections,
		Threshold:      st.Threshold,
		CurrentUsage:   st.CurrentUsage,
		Available:      st.Available,
		ActiveCount:    st.ActiveCount,
	}
	for _, res := range st.Active {
		resp.Active = append(resp.Active, activeReservation{
			RunID:       res.RunID,
			OwnerID:     res.OwnerID,
			Label:       res.Label,
			Parallelism: res.Parallel,
			StartedAt:   res.CreatedAt,
			ExpiresAt:   res.ExpiresAt,
		})
	}
	return resp
}

// writeError traduz a taxonomia do domínio para status HTTP.
// Deny não passa por aqui: negar é decisão, não falha (vai como 200).
func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_argument", Detail: err.Error()})
	case errors.Is(err, domain.ErrLimitNotFound):
		// Erro de configuração: o operador precisa provisionar o limite.
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "limit_not_found", Detail: err.Error()})
	case errors.Is(err, domain.ErrDuplicateReservation):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "reservation_conflict", Detail: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		w.Header().Set("Retry-After", formatInt(int(h.retryAfter.Seconds())))
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable", Detail: err.Error()})
	default:
		log.Printf("pool: unexpected handler error: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("pool: encode response: %v", err)
	}
}
