package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// DefaultMaxBatch caps the protocols accepted by one batch request.
const DefaultMaxBatch = 50

// ProtocolRequest is the body of every text-scoring endpoint.
type ProtocolRequest struct {
	Text            string `json:"text"`
	Phase           string `json:"phase,omitempty"`
	TherapeuticArea string `json:"therapeutic_area,omitempty"`
}

func (r ProtocolRequest) toAnalysis() analysis.Request {
	return analysis.Request{Text: r.Text, Phase: r.Phase, TherapeuticArea: r.TherapeuticArea}
}

// BatchRequest carries several protocols.
type BatchRequest struct {
	Protocols []ProtocolRequest `json:"protocols"`
}

// ProtocolHandler serves the scoring engine over HTTP.
type ProtocolHandler struct {
	svc      *analysis.Service
	logger   logging.Logger
	maxBatch int
}

// NewProtocolHandler wraps svc.
func NewProtocolHandler(svc *analysis.Service, logger logging.Logger) *ProtocolHandler {
	return &ProtocolHandler{svc: svc, logger: logging.OrNop(logger), maxBatch: DefaultMaxBatch}
}

// readProtocol binds the body and rejects blank text.  The engine itself
// accepts blank text; over HTTP it almost always means a client bug.
func (h *ProtocolHandler) readProtocol(c *gin.Context) (analysis.Request, bool) {
	var body ProtocolRequest
	if !bindJSON(c, &body) {
		return analysis.Request{}, false
	}
	req := body.toAnalysis()
	if req.Empty() {
		writeAppError(c, errors.New(errors.ErrCodeValidation, "text is required"))
		return analysis.Request{}, false
	}
	return req, true
}

// Analyze handles POST /api/v1/protocols/analyze.
func (h *ProtocolHandler) Analyze(c *gin.Context) {
	req, ok := h.readProtocol(c)
	if !ok {
		return
	}
	report, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AnalyzeBatch handles POST /api/v1/protocols/analyze/batch.
func (h *ProtocolHandler) AnalyzeBatch(c *gin.Context) {
	var body BatchRequest
	if !bindJSON(c, &body) {
		return
	}
	if len(body.Protocols) == 0 {
		writeAppError(c, errors.New(errors.ErrCodeValidation, "protocols must not be empty"))
		return
	}
	if len(body.Protocols) > h.maxBatch {
		writeAppError(c, errors.New(errors.ErrCodeValidation, "too many protocols").
			WithDetail(fmt.Sprintf("%d exceeds the limit of %d", len(body.Protocols), h.maxBatch)))
		return
	}
	reqs := make([]analysis.Request, len(body.Protocols))
	for i, p := range body.Protocols {
		reqs[i] = p.toAnalysis()
	}
	report, err := h.svc.AnalyzeBatch(c.Request.Context(), reqs)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Features handles POST /api/v1/protocols/features.
func (h *ProtocolHandler) Features(c *gin.Context) {
	req, ok := h.readProtocol(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.Features(c.Request.Context(), req))
}

// Complexity handles POST /api/v1/protocols/complexity.
func (h *ProtocolHandler) Complexity(c *gin.Context) {
	req, ok := h.readProtocol(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, h.svc.Complexity(ctx, h.svc.Features(ctx, req)))
}

// Enrollment handles POST /api/v1/protocols/enrollment.
func (h *ProtocolHandler) Enrollment(c *gin.Context) {
	req, ok := h.readProtocol(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, h.svc.Enrollment(ctx, h.svc.Features(ctx, req)))
}

// VisitBurden handles POST /api/v1/protocols/visit-burden.
func (h *ProtocolHandler) VisitBurden(c *gin.Context) {
	req, ok := h.readProtocol(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, h.svc.VisitBurden(ctx, req.Text, h.svc.Features(ctx, req)))
}
