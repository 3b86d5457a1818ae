package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/getailigned/dependency-service/internal/apierr"
	"github.com/getailigned/dependency-service/internal/depservice"
	"github.com/getailigned/dependency-service/internal/types"
)

var validate = validator.New()

// createEdgeRequest is the POST /api/dependencies body. Struct tags drive
// go-playground/validator, the same request-validation layer the rest of
// the pack wires in ahead of handing a payload to business logic.
type createEdgeRequest struct {
	FromID         string               `json:"from_id" validate:"required"`
	ToID           string               `json:"to_id" validate:"required"`
	DependencyType types.DependencyType `json:"dependency_type" validate:"required"`
	LagDays        int                  `json:"lag_days"`
	Metadata       json.RawMessage      `json:"metadata"`
}

type updateEdgeRequest struct {
	DependencyType *types.DependencyType `json:"dependency_type"`
	LagDays        *int                  `json:"lag_days"`
	Metadata       json.RawMessage       `json:"metadata"`
	metadataSet    bool
}

func (r *updateEdgeRequest) UnmarshalJSON(data []byte) error {
	type alias updateEdgeRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = updateEdgeRequest(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		_, r.metadataSet = raw["metadata"]
	}
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "malformed JSON body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, apierr.New(apierr.CodeMissingRequiredFields, err.Error()))
		return
	}

	principal := principalFromContext(r.Context())
	edge, err := h.svc.CreateEdge(r.Context(), principal, depservice.CreateEdgeInput{
		FromID:         req.FromID,
		ToID:           req.ToID,
		DependencyType: req.DependencyType,
		LagDays:        req.LagDays,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, edge)
}

func (h *Handler) handleGetEdge(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/dependencies/")
	if id == "" {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "dependency id required"))
		return
	}
	principal := principalFromContext(r.Context())
	edge, err := h.svc.GetEdge(r.Context(), principal, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, edge)
}

func (h *Handler) handleUpdateEdge(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/dependencies/")
	if id == "" {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "dependency id required"))
		return
	}

	var req updateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "malformed JSON body"))
		return
	}

	patch := types.EdgePatch{
		DependencyType: req.DependencyType,
		LagDays:        req.LagDays,
		Metadata:       req.Metadata,
		MetadataSet:    req.metadataSet,
	}

	principal := principalFromContext(r.Context())
	edge, err := h.svc.UpdateEdge(r.Context(), principal, id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, edge)
}

func (h *Handler) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/dependencies/")
	if id == "" {
		writeError(w, apierr.New(apierr.CodeInvalidRequest, "dependency id required"))
		return
	}
	principal := principalFromContext(r.Context())
	if err := h.svc.DeleteEdge(r.Context(), principal, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "dependency deleted", Timestamp: time.Now()})
}

func (h *Handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	var nodeIDs []string
	if q := r.URL.Query().Get("work_item_ids"); q != "" {
		nodeIDs = strings.Split(q, ",")
	}

	principal := principalFromContext(r.Context())
	res, err := h.svc.Graph(r.Context(), principal, nodeIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, res)
}

func (h *Handler) handleCriticalPath(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	res, err := h.svc.Analysis(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, res)
}

func (h *Handler) handleCycles(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	res, err := h.svc.Cycles(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, res)
}
