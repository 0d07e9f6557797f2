package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/retarget"
	"github.com/ayusman/minime/internal/store"
)

// RigHandler handles HTTP requests for rig calibrations.
type RigHandler struct {
	store *store.Store

	// OnChange runs after a rig is created, updated or deleted, so the tracker can rebind.
	OnChange func() error
}

// NewRigHandler creates a new RigHandler with the given store.
func NewRigHandler(s *store.Store) *RigHandler {
	return &RigHandler{store: s}
}

// RegisterRoutes mounts the rig endpoints on r.
func (h *RigHandler) RegisterRoutes(r chi.Router) {
	r.Route("/rigs", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/default", h.bundled)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type rigRequest struct {
	SkeletonID string              `json:"skeleton_id"`
	Definition retarget.Definition `json:"definition"`
}

type rigResponse struct {
	ID         string              `json:"id"`
	SkeletonID string              `json:"skeleton_id"`
	Definition retarget.Definition `json:"definition"`
	CreatedAt  string              `json:"created_at"`
	UpdatedAt  string              `json:"updated_at"`
}

type listRigsResponse struct {
	Rigs []rigResponse `json:"rigs"`
}

func toRigResponse(r *store.Rig) rigResponse {
	return rigResponse{
		ID:         r.ID,
		SkeletonID: r.SkeletonID,
		Definition: r.Definition,
		CreatedAt:  r.CreatedAt.Format(timeFormat),
		UpdatedAt:  r.UpdatedAt.Format(timeFormat),
	}
}

// list handles GET /rigs and returns all rigs.
func (h *RigHandler) list(w http.ResponseWriter, r *http.Request) {
	rigs, err := h.store.Rigs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rigs")
		return
	}

	response := listRigsResponse{Rigs: make([]rigResponse, 0, len(rigs))}
	for _, rig := range rigs {
		response.Rigs = append(response.Rigs, toRigResponse(rig))
	}
	writeJSON(w, http.StatusOK, response)
}

// bundled handles GET /rigs/default and returns the built-in avatar map as a starting point
// for calibration.
func (h *RigHandler) bundled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, retarget.Define(retarget.AvatarRiggedMap()))
}

// get handles GET /rigs/{id}.
func (h *RigHandler) get(w http.ResponseWriter, r *http.Request) {
	rig, err := h.store.Rigs().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rig")
		return
	}
	writeJSON(w, http.StatusOK, toRigResponse(rig))
}

// create handles POST /rigs. The definition is validated before it is stored.
func (h *RigHandler) create(w http.ResponseWriter, r *http.Request) {
	var req rigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SkeletonID == "" && req.Definition.Skeleton == "" {
		writeError(w, http.StatusBadRequest, "Skeleton ID is required")
		return
	}

	rig := &store.Rig{
		ID:         uuid.New().String(),
		SkeletonID: req.SkeletonID,
		Definition: req.Definition,
	}
	if err := h.store.Rigs().Create(rig); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.changed()
	writeJSON(w, http.StatusCreated, toRigResponse(rig))
}

// update handles PUT /rigs/{id} and replaces the rig definition.
func (h *RigHandler) update(w http.ResponseWriter, r *http.Request) {
	rig, err := h.store.Rigs().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rig")
		return
	}

	var req rigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SkeletonID != "" {
		rig.SkeletonID = req.SkeletonID
	}
	rig.Definition = req.Definition

	if err := h.store.Rigs().Update(rig); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.changed()
	writeJSON(w, http.StatusOK, toRigResponse(rig))
}

// delete handles DELETE /rigs/{id}.
func (h *RigHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Rigs().Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete rig")
		return
	}

	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

func (h *RigHandler) changed() {
	if h.OnChange == nil {
		return
	}
	if err := h.OnChange(); err != nil {
		logger.Log().Warn("rebind after rig change failed, keeping the current map", zap.Error(err))
	}
}
