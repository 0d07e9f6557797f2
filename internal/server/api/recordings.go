package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/store"
)

// Recorder starts and stops recordings of the live tracker.
type Recorder interface {
	StartRecording(name string) (*store.Recording, error)
	StopRecording() (*store.Recording, error)
}

// RecordingHandler handles HTTP requests for recordings.
type RecordingHandler struct {
	store    *store.Store
	recorder Recorder
}

// NewRecordingHandler creates a new RecordingHandler. recorder may be nil, in which case
// recordings can be browsed but not started.
func NewRecordingHandler(s *store.Store, recorder Recorder) *RecordingHandler {
	return &RecordingHandler{store: s, recorder: recorder}
}

// RegisterRoutes mounts the recording endpoints on r.
func (h *RecordingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/recordings", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.start)
		r.Post("/stop", h.stop)
		r.Get("/{id}", h.get)
		r.Get("/{id}/frames", h.frames)
		r.Delete("/{id}", h.delete)
	})
}

type startRecordingRequest struct {
	Name string `json:"name"`
}

type recordingResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SkeletonID string `json:"skeleton_id"`
	Frames     int    `json:"frames"`
	CreatedAt  string `json:"created_at"`
}

type listRecordingsResponse struct {
	Recordings []recordingResponse `json:"recordings"`
}

type framesResponse struct {
	Frames []*landmark.Frame `json:"frames"`
}

func toRecordingResponse(r *store.Recording) recordingResponse {
	return recordingResponse{
		ID:         r.ID,
		Name:       r.Name,
		SkeletonID: r.SkeletonID,
		Frames:     r.Frames,
		CreatedAt:  r.CreatedAt.Format(timeFormat),
	}
}

// list handles GET /recordings.
func (h *RecordingHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Recordings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}

	response := listRecordingsResponse{Recordings: make([]recordingResponse, 0, len(recs))}
	for _, rec := range recs {
		response.Recordings = append(response.Recordings, toRecordingResponse(rec))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /recordings/{id}.
func (h *RecordingHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Recordings().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr(w, err, "Failed to get recording")
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

// frames handles GET /recordings/{id}/frames and returns the landmark frames in order.
func (h *RecordingHandler) frames(w http.ResponseWriter, r *http.Request) {
	frames, err := h.store.Recordings().Frames(chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr(w, err, "Failed to read frames")
		return
	}
	if frames == nil {
		frames = []*landmark.Frame{}
	}
	writeJSON(w, http.StatusOK, framesResponse{Frames: frames})
}

// start handles POST /recordings and starts recording the live tracker.
func (h *RecordingHandler) start(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "Tracker is not running")
		return
	}

	var req startRecordingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	rec, err := h.recorder.StartRecording(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start recording")
		return
	}
	writeJSON(w, http.StatusCreated, toRecordingResponse(rec))
}

// stop handles POST /recordings/stop.
func (h *RecordingHandler) stop(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "Tracker is not running")
		return
	}

	rec, err := h.recorder.StopRecording()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

// delete handles DELETE /recordings/{id}.
func (h *RecordingHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Recordings().Delete(chi.URLParam(r, "id")); err != nil {
		h.notFoundOr(w, err, "Failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordingHandler) notFoundOr(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}
	writeError(w, http.StatusInternalServerError, message)
}
