package detector

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
)

// RemoteDetector posts JPEG frames to an HTTP inference service that answers with the same
// JSON document as the MediaPipe service.
type RemoteDetector struct {
	client   *resty.Client
	endpoint string
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewRemoteDetector creates a detector for cfg.Endpoint.
func NewRemoteDetector(cfg Config) (*RemoteDetector, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: remote backend needs an endpoint", ErrDetectorUnavailable)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteDetector{
		client:   resty.New().SetTimeout(timeout),
		endpoint: cfg.Endpoint,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Detect implements Detector.
func (d *RemoteDetector) Detect(frame *gocv.Mat) ([]*landmark.Frame, error) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	var result response
	resp, err := d.client.R().
		SetContext(d.ctx).
		SetHeader("Content-Type", "image/jpeg").
		SetBody(buf.GetBytes()).
		SetResult(&result).
		Post(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("remote detect: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote detect: server returned %s: %s", resp.Status(), resp.String())
	}

	return result.frames()
}

// Close cancels in-flight requests.
func (d *RemoteDetector) Close() error {
	d.cancel()
	return nil
}
