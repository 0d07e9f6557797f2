package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/retarget"
	"github.com/ayusman/minime/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func newRouter(handlers ...interface{ RegisterRoutes(chi.Router) }) http.Handler {
	r := chi.NewRouter()
	for _, h := range handlers {
		h.RegisterRoutes(r)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRigHandler_CRUD(t *testing.T) {
	s := newTestStore(t)
	rigs := NewRigHandler(s)
	changes := 0
	rigs.OnChange = func() error {
		changes++
		return nil
	}
	h := newRouter(rigs)

	// Create
	rec := do(t, h, http.MethodPost, "/rigs", rigRequest{
		SkeletonID: retarget.AvatarRigged,
		Definition: retarget.Define(retarget.AvatarRiggedMap()),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	var created rigResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}

	// List
	rec = do(t, h, http.MethodGet, "/rigs", nil)
	var list listRigsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Rigs) != 1 || list.Rigs[0].ID != created.ID {
		t.Errorf("unexpected list %+v", list.Rigs)
	}

	// Update
	def := created.Definition
	def.Affine.Depth = -2
	rec = do(t, h, http.MethodPut, "/rigs/"+created.ID, rigRequest{Definition: def})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
	}

	// Get
	rec = do(t, h, http.MethodGet, "/rigs/"+created.ID, nil)
	var got rigResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode rig: %v", err)
	}
	if got.Definition.Affine.Depth != -2 {
		t.Errorf("expected depth -2, got %v", got.Definition.Affine.Depth)
	}

	// Delete
	rec = do(t, h, http.MethodDelete, "/rigs/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/rigs/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	if changes != 3 {
		t.Errorf("expected 3 change notifications, got %d", changes)
	}
}

func TestRigHandler_RejectsInvalidDefinition(t *testing.T) {
	s := newTestStore(t)
	h := newRouter(NewRigHandler(s))

	def := retarget.Define(retarget.AvatarRiggedMap())
	def.Rules[1].From = "left_tail"

	rec := do(t, h, http.MethodPost, "/rigs", rigRequest{Definition: def})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/rigs", rigRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing skeleton: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/rigs", bytes.NewBufferString("{"))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestRigHandler_Default(t *testing.T) {
	h := newRouter(NewRigHandler(newTestStore(t)))

	rec := do(t, h, http.MethodGet, "/rigs/default", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var def retarget.Definition
	if err := json.NewDecoder(rec.Body).Decode(&def); err != nil {
		t.Fatalf("failed to decode definition: %v", err)
	}
	if def.Skeleton != retarget.AvatarRigged {
		t.Errorf("expected skeleton %q, got %q", retarget.AvatarRigged, def.Skeleton)
	}
}

type fakeRecorder struct {
	s       *store.Store
	current *store.Recording
}

func (f *fakeRecorder) StartRecording(name string) (*store.Recording, error) {
	rec := &store.Recording{ID: "rec-live", Name: name}
	if err := f.s.Recordings().Create(rec); err != nil {
		return nil, err
	}
	f.current = rec
	return rec, nil
}

func (f *fakeRecorder) StopRecording() (*store.Recording, error) {
	if f.current == nil {
		return nil, errors.New("not recording")
	}
	rec := f.current
	f.current = nil
	return rec, nil
}

func TestRecordingHandler(t *testing.T) {
	s := newTestStore(t)
	h := newRouter(NewRecordingHandler(s, &fakeRecorder{s: s}))

	rec := do(t, h, http.MethodPost, "/recordings/stop", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("stop without recording: expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/recordings", startRecordingRequest{Name: "dance"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body)
	}

	frame, err := landmark.NewFrame(landmark.TPosePoints(), 40*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}
	if err := s.Recordings().AppendFrames("rec-live", []*landmark.Frame{frame}); err != nil {
		t.Fatalf("failed to append frames: %v", err)
	}

	rec = do(t, h, http.MethodPost, "/recordings/stop", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("stop: expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/recordings/rec-live/frames", nil)
	var frames framesResponse
	if err := json.NewDecoder(rec.Body).Decode(&frames); err != nil {
		t.Fatalf("failed to decode frames: %v", err)
	}
	if len(frames.Frames) != 1 || frames.Frames[0].Timestamp != 40*time.Millisecond {
		t.Errorf("unexpected frames %+v", frames.Frames)
	}

	rec = do(t, h, http.MethodGet, "/recordings", nil)
	var list listRecordingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Recordings) != 1 || list.Recordings[0].Frames != 1 {
		t.Errorf("unexpected list %+v", list.Recordings)
	}

	rec = do(t, h, http.MethodDelete, "/recordings/rec-live", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/recordings/rec-live", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestRecordingHandler_WithoutTracker(t *testing.T) {
	h := newRouter(NewRecordingHandler(newTestStore(t), nil))

	rec := do(t, h, http.MethodPost, "/recordings", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/recordings", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("browsing works without a tracker, got %d", rec.Code)
	}
}
