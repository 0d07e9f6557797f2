package store

import (
	"errors"
	"testing"
	"time"

	"github.com/ayusman/minime/internal/landmark"
)

func recordedFrame(t *testing.T, ts time.Duration) *landmark.Frame {
	t.Helper()
	f, err := landmark.NewFrame(landmark.TPosePoints(), ts)
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}
	return f
}

func TestRecordingRepository_AppendAndRead(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()

	rec := &Recording{ID: "rec-1", Name: "warmup", SkeletonID: "avatar_rigged"}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}

	first := []*landmark.Frame{
		recordedFrame(t, 0),
		nil,
		recordedFrame(t, 33*time.Millisecond),
	}
	if err := repo.AppendFrames("rec-1", first); err != nil {
		t.Fatalf("failed to append frames: %v", err)
	}

	armsUp, err := landmark.NewFrame(landmark.ArmsUpPoints(), 66*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}
	if err := repo.AppendFrames("rec-1", []*landmark.Frame{armsUp}); err != nil {
		t.Fatalf("failed to append frames: %v", err)
	}

	got, err := repo.GetByID("rec-1")
	if err != nil {
		t.Fatalf("failed to get recording: %v", err)
	}
	if got.Frames != 3 {
		t.Errorf("Frames = %d, want 3 (empty frames are skipped)", got.Frames)
	}

	frames, err := repo.Frames("rec-1")
	if err != nil {
		t.Fatalf("failed to read frames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[1].Timestamp != 33*time.Millisecond {
		t.Errorf("frames[1].Timestamp = %v, want 33ms", frames[1].Timestamp)
	}
	if frames[2].At(landmark.LeftWrist) != armsUp.At(landmark.LeftWrist) {
		t.Errorf("last frame left wrist = %+v, want %+v", frames[2].At(landmark.LeftWrist), armsUp.At(landmark.LeftWrist))
	}
}

func TestRecordingRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := repo.AppendFrames("missing", []*landmark.Frame{recordedFrame(t, 0)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendFrames() error = %v, want ErrNotFound", err)
	}
	if _, err := repo.Frames("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Frames() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRecordingRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()

	if err := repo.Create(&Recording{ID: "rec-1", Name: "a"}); err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}
	if err := repo.AppendFrames("rec-1", []*landmark.Frame{recordedFrame(t, 0)}); err != nil {
		t.Fatalf("failed to append frames: %v", err)
	}
	if err := repo.Delete("rec-1"); err != nil {
		t.Fatalf("failed to delete recording: %v", err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM recording_frames`).Scan(&n); err != nil {
		t.Fatalf("count frames: %v", err)
	}
	if n != 0 {
		t.Errorf("%d frames left after delete, want 0", n)
	}
}

func TestRecordingRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()

	for _, id := range []string{"rec-1", "rec-2"} {
		if err := repo.Create(&Recording{ID: id, Name: id}); err != nil {
			t.Fatalf("failed to create recording: %v", err)
		}
	}

	recs, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list recordings: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d recordings, want 2", len(recs))
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get(SettingShowCamera); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if !repo.Bool(SettingBlurCamera, true) {
		t.Error("Bool() should fall back to the default")
	}

	if err := repo.SetBool(SettingShowCamera, true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if err := repo.SetBool(SettingShowCamera, false); err != nil {
		t.Fatalf("SetBool() overwrite error = %v", err)
	}
	if repo.Bool(SettingShowCamera, true) {
		t.Error("Bool() = true, want the overwritten false")
	}

	if err := repo.Set(SettingBlurCamera, "sometimes"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !repo.Bool(SettingBlurCamera, true) {
		t.Error("malformed value should fall back to the default")
	}
}
