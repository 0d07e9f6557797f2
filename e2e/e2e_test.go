package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/app"
	"github.com/ayusman/minime/internal/capture"
	"github.com/ayusman/minime/internal/config"
	"github.com/ayusman/minime/internal/detector"
	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/present"
	"github.com/ayusman/minime/internal/server"
	"github.com/ayusman/minime/internal/store"
)

func testConfig(dataDir string) config.Config {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Avatar.Skeleton = filepath.Join("..", "assets", "skeletons", "avatar_rigged.yaml")
	cfg.Avatar.Retarget = filepath.Join("..", "assets", "retarget.yaml")
	cfg.Render.Window = false
	cfg.Render.TickRate = 100
	cfg.Render.Width, cfg.Render.Height = 320, 240
	cfg.Motion.Enabled = false
	return cfg
}

func lastMessage(t *testing.T, data []byte) present.Message {
	t.Helper()

	var last present.Message
	found := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := json.Unmarshal(sc.Bytes(), &last); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		found = true
	}
	if !found {
		t.Fatal("no pose messages written")
	}
	return last
}

func TestE2E_TrackRecordReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)

	s, err := store.New(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	mockDetector := detector.NewMockDetector()
	mockDetector.SetFrames([]*landmark.Frame{detector.ArmsUpLandmarks()})

	var live bytes.Buffer
	application, err := app.New(app.Options{
		Config:    cfg,
		Store:     s,
		Camera:    capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Detector:  mockDetector,
		Renderers: []present.Renderer{present.NewJSONRenderer(&live)},
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Stop()

	ts := httptest.NewServer(server.New(server.Config{Store: s, App: application}))
	defer ts.Close()
	client := ts.Client()

	t.Run("CalibrateRig", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/rigs/default")
		if err != nil {
			t.Fatalf("get default rig error = %v", err)
		}
		var def map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&def)
		resp.Body.Close()

		def["affine"].(map[string]interface{})["depth"] = -2.5
		body, _ := json.Marshal(map[string]interface{}{"definition": def})

		resp, err = client.Post(ts.URL+"/api/rigs", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("create rig error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}

		if got := application.Solver().Map().Affine().Depth; got != -2.5 {
			t.Errorf("depth = %v, want -2.5", got)
		}
	})

	var recordingID string
	t.Run("RecordSession", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/recordings", "application/json", strings.NewReader(`{"name": "arms-up"}`))
		if err != nil {
			t.Fatalf("start recording error = %v", err)
		}
		var started struct {
			ID string `json:"id"`
		}
		json.NewDecoder(resp.Body).Decode(&started)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		recordingID = started.ID

		if err := application.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		deadline := time.Now().Add(3 * time.Second)
		for application.Status().Buffer.Published < 5 {
			if time.Now().After(deadline) {
				t.Fatal("tracker published no frames")
			}
			time.Sleep(10 * time.Millisecond)
		}

		resp, err = client.Post(ts.URL+"/api/recordings/stop", "application/json", nil)
		if err != nil {
			t.Fatalf("stop recording error = %v", err)
		}
		var stopped struct {
			Frames int `json:"frames"`
		}
		json.NewDecoder(resp.Body).Decode(&stopped)
		resp.Body.Close()
		if stopped.Frames == 0 {
			t.Fatal("recording captured no frames")
		}

		application.Stop()
	})

	t.Run("ReplayMatchesLive", func(t *testing.T) {
		frames, err := s.Recordings().Frames(recordingID)
		if err != nil {
			t.Fatalf("Frames() error = %v", err)
		}

		solver, err := app.LoadSolver(cfg.Avatar, s)
		if err != nil {
			t.Fatalf("LoadSolver() error = %v", err)
		}

		var replayed bytes.Buffer
		if err := app.Replay(context.Background(), solver, frames, present.NewJSONRenderer(&replayed), nil); err != nil {
			t.Fatalf("Replay() error = %v", err)
		}

		want := lastMessage(t, live.Bytes())
		got := lastMessage(t, replayed.Bytes())
		if len(got.Joints) != len(want.Joints) {
			t.Fatalf("len(joints) = %d, want %d", len(got.Joints), len(want.Joints))
		}
		for i := range want.Joints {
			if got.Joints[i].Name != want.Joints[i].Name {
				t.Fatalf("joint %d = %s, want %s", i, got.Joints[i].Name, want.Joints[i].Name)
			}
			for k := 0; k < 4; k++ {
				if d := got.Joints[i].Rotation[k] - want.Joints[i].Rotation[k]; d > 1e-9 || d < -1e-9 {
					t.Errorf("%s rotation differs: got %v, want %v", want.Joints[i].Name, got.Joints[i].Rotation, want.Joints[i].Rotation)
					break
				}
			}
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, _ := client.Get(ts.URL + "/api/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
		resp.Body.Close()

		resp, _ = client.Get(ts.URL + "/api/recordings")
		var listed struct {
			Recordings []struct {
				Name string `json:"name"`
			} `json:"recordings"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)
		resp.Body.Close()
		if len(listed.Recordings) != 1 || listed.Recordings[0].Name != "arms-up" {
			t.Errorf("recordings = %+v, want one named arms-up", listed.Recordings)
		}
	})
}

func TestE2E_UnboundAvatarFailsFast(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	cfg := testConfig(t.TempDir())
	cfg.Avatar.SkeletonID = "unknown_avatar"

	if _, err := app.New(app.Options{Config: cfg, Detector: detector.NewMockDetector()}); err == nil {
		t.Fatal("expected app.New to fail for an avatar without a retargeting map")
	}
}
