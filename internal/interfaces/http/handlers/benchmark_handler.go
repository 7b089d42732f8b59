package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// BenchmarkRequest positions precomputed metrics within a cohort.
type BenchmarkRequest struct {
	Metrics         protocol.ProtocolMetrics `json:"metrics"`
	Phase           string                   `json:"phase"`
	TherapeuticArea string                   `json:"therapeutic_area,omitempty"`
}

// BenchmarkHandler serves benchmarks and the reference corpus.
type BenchmarkHandler struct {
	svc    *analysis.Service
	corpus *analysis.CorpusProvider
	logger logging.Logger
}

// NewBenchmarkHandler wires the handler.  corpus may be nil, in which case
// corpus endpoints answer CORPUS_001.
func NewBenchmarkHandler(svc *analysis.Service, corpus *analysis.CorpusProvider, logger logging.Logger) *BenchmarkHandler {
	return &BenchmarkHandler{svc: svc, corpus: corpus, logger: logging.OrNop(logger)}
}

// Benchmark handles POST /api/v1/benchmarks.
func (h *BenchmarkHandler) Benchmark(c *gin.Context) {
	var req BenchmarkRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Phase) == "" {
		writeAppError(c, errors.New(errors.ErrCodeValidation, "phase is required"))
		return
	}
	var area protocol.TherapeuticArea
	if strings.TrimSpace(req.TherapeuticArea) != "" {
		area = protocol.ParseArea(req.TherapeuticArea)
	}
	b, err := h.svc.Benchmark(c.Request.Context(), req.Metrics, protocol.NormalizePhase(req.Phase), area)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CorpusSummary handles GET /api/v1/corpus/summary.
func (h *BenchmarkHandler) CorpusSummary(c *gin.Context) {
	if h.corpus == nil {
		writeAppError(c, analysis.ErrCorpusNotLoaded)
		return
	}
	sum, err := h.corpus.Summary()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ReloadCorpus handles POST /api/v1/corpus/reload.  A failed reload keeps
// serving the previous corpus.
func (h *BenchmarkHandler) ReloadCorpus(c *gin.Context) {
	if h.corpus == nil {
		writeAppError(c, analysis.ErrCorpusNotLoaded)
		return
	}
	if err := h.corpus.Reload(c.Request.Context()); err != nil {
		h.logger.Warn("corpus reload failed", logging.Err(err))
		writeAppError(c, err)
		return
	}
	sum, err := h.corpus.Summary()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
