package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	assets, err := filepath.Abs(filepath.Join("..", "..", "assets"))
	if err != nil {
		t.Fatalf("abs: %v", err)
	}
	dir := t.TempDir()
	cfg := fmt.Sprintf(`data_dir: %s
avatar:
  skeleton: %s
  retarget: %s
`, dir, filepath.Join(assets, "skeletons", "avatar_rigged.yaml"), filepath.Join(assets, "retarget.yaml"))

	path := filepath.Join(dir, "minime.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "check", "--config", writeTestConfig(t))
	if err != nil {
		t.Fatalf("check error = %v", err)
	}

	if !strings.Contains(out, "skeleton avatar_rigged") {
		t.Errorf("output missing skeleton line:\n%s", out)
	}
	if !strings.Contains(out, "driving 13 joints") {
		t.Errorf("output missing driven joint count:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config", "--config", writeTestConfig(t))
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "tick_rate: 60") {
		t.Errorf("output missing tick rate:\n%s", out)
	}
}

func TestReplayCommand_UnknownRecording(t *testing.T) {
	_, err := execute(t, "replay", "missing", "--quiet", "--config", writeTestConfig(t))
	if err == nil {
		t.Fatal("expected an error for an unknown recording")
	}
}
