// Package config loads the minime YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/minime/internal/capture"
	"github.com/ayusman/minime/internal/detector"
	"github.com/ayusman/minime/internal/present"
)

// DefaultTickRate is the render loop frequency in Hz.
const DefaultTickRate = 60

// Config is the complete application configuration.
type Config struct {
	Debug    bool            `yaml:"debug"`
	DataDir  string          `yaml:"data_dir"`
	Camera   capture.Config  `yaml:"camera"`
	Motion   MotionConfig    `yaml:"motion"`
	Detector detector.Config `yaml:"detector"`
	Avatar   AvatarConfig    `yaml:"avatar"`
	Render   RenderConfig    `yaml:"render"`
	Server   ServerConfig    `yaml:"server"`
	Tray     bool            `yaml:"tray"`
}

// MotionConfig controls the motion gate in front of the detector.
type MotionConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold float64       `yaml:"threshold"`
	Hold      time.Duration `yaml:"hold"`
}

// AvatarConfig names the skeleton asset and the retargeting table.
type AvatarConfig struct {
	Skeleton   string `yaml:"skeleton"`
	SkeletonID string `yaml:"skeleton_id"`
	Retarget   string `yaml:"retarget"`
}

// RenderConfig controls the render loop and the presentation targets.
type RenderConfig struct {
	TickRate   int                   `yaml:"tick_rate"`
	Width      int                   `yaml:"width"`
	Height     int                   `yaml:"height"`
	Window     bool                  `yaml:"window"`
	ShowCamera bool                  `yaml:"show_camera"`
	BlurCamera bool                  `yaml:"blur_camera"`
	Renderer   present.ProcessConfig `yaml:"renderer"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		Camera:  capture.DefaultConfig(),
		Motion: MotionConfig{
			Enabled:   true,
			Threshold: 1.0,
			Hold:      2 * time.Second,
		},
		Detector: detector.DefaultConfig(),
		Avatar: AvatarConfig{
			Skeleton: "assets/skeletons/avatar_rigged.yaml",
			Retarget: "assets/retarget.yaml",
		},
		Render: RenderConfig{
			TickRate:   DefaultTickRate,
			Width:      800,
			Height:     600,
			Window:     true,
			BlurCamera: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8787",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".minime"
	}
	return filepath.Join(home, ".minime")
}

// Load reads the YAML file at path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects impossible values.
func (c Config) Validate() error {
	var errs []error
	if c.Render.TickRate <= 0 || c.Render.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("render.tick_rate %d outside 1..1000", c.Render.TickRate))
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, fmt.Errorf("render size %dx%d must be positive", c.Render.Width, c.Render.Height))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.fps %d must be positive", c.Camera.FPS))
	}
	if c.Motion.Threshold < 0 || c.Motion.Threshold > 100 {
		errs = append(errs, fmt.Errorf("motion.threshold %v outside 0..100", c.Motion.Threshold))
	}
	switch c.Detector.Backend {
	case detector.BackendMediaPipe, detector.BackendTFLite, detector.BackendMock:
	case detector.BackendRemote:
		if c.Detector.Endpoint == "" {
			errs = append(errs, errors.New("detector.endpoint is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown detector.backend %q", c.Detector.Backend))
	}
	for _, v := range []float64{c.Detector.MinConfidence, c.Detector.MinPresence} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("detector threshold %v outside [0,1]", v))
			break
		}
	}
	if c.Avatar.Skeleton == "" {
		errs = append(errs, errors.New("avatar.skeleton is required"))
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required when the server is enabled"))
	}
	return errors.Join(errs...)
}

// DatabasePath returns the SQLite file inside the data directory.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "minime.db")
}

// TickInterval returns the render loop period.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Render.TickRate)
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
