package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/search"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	mu       sync.Mutex // serialises engine use; an Engine serves one query at a time
	engine   *search.Engine
	defaults search.Options
	stats    StatsResponse
}

// NewHandlers creates handlers with the given query engine, the query
// options defaults to fall back to when a request omits them, and the
// static stats payload.
func NewHandlers(engine *search.Engine, defaults search.Options, stats StatsResponse) *Handlers {
	return &Handlers{engine: engine, defaults: defaults, stats: stats}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	opts := applyOverrides(h.defaults, req.Options)

	h.mu.Lock()
	result, err := h.engine.GetPath(r.Context(), req.StartID, req.TargetID, opts)
	h.mu.Unlock()
	if err != nil {
		var cerr *cpderr.Error
		switch {
		case errors.As(err, &cerr) && cerr.Kind == cpderr.KindInvalidArgument:
			writeError(w, http.StatusBadRequest, "invalid_vertex_id", "")
		case errors.As(err, &cerr) && cerr.Kind == cpderr.KindUnreachable:
			writeError(w, http.StatusNotFound, "no_route_found", "")
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	if result.Unreachable() {
		writeError(w, http.StatusNotFound, "no_route_found", "")
		return
	}

	resp := RouteResponse{
		SumOfEdgeCosts: result.SumOfEdgeCosts,
		Path:           result.Path,
		TimeNano:       result.TimeNano,
		Expansions:     result.Expansions,
		Inserted:       result.Inserted,
		Touched:        result.Touched,
		Updated:        result.Updated,
		CutoffReason:   result.Cutoff.String(),
		Suboptimal:     result.Suboptimal,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

// applyOverrides layers a request's optional fields over the server's
// configured defaults, leaving any field the request didn't set alone.
func applyOverrides(defaults search.Options, o *OptionsJSON) search.Options {
	opts := defaults
	if o == nil {
		return opts
	}
	if o.CostCutoff != nil {
		opts.CostCutoff = *o.CostCutoff
	}
	if o.ExpansionCutoff != nil {
		opts.ExpansionCutoff = *o.ExpansionCutoff
	}
	if o.TimeCutoffNano != nil {
		opts.TimeCutoffNano = *o.TimeCutoffNano
	}
	if o.HScale != nil {
		opts.HScale = *o.HScale
	}
	if o.QualityRatio != nil {
		opts.QualityRatio = *o.QualityRatio
	}
	if o.KMovesMax != nil {
		opts.KMovesMax = *o.KMovesMax
	}
	return opts
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
