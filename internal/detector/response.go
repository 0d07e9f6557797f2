package detector

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/minime/internal/landmark"
)

// response is the JSON document returned by the MediaPipe service and the remote backend.
type response struct {
	Poses []jsonPose `json:"poses"`
	Error string     `json:"error,omitempty"`
}

type jsonPose struct {
	Landmarks      []landmark.Landmark `json:"landmarks"`
	WorldLandmarks []landmark.Landmark `json:"world_landmarks,omitempty"`
	Score          float64             `json:"score,omitempty"`
}

func parseResponse(data []byte) ([]*landmark.Frame, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return resp.frames()
}

func (r response) frames() ([]*landmark.Frame, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("detector service: %s", r.Error)
	}

	frames := make([]*landmark.Frame, 0, len(r.Poses))
	for _, p := range r.Poses {
		if len(p.Landmarks) == 0 {
			continue
		}
		f, err := landmark.NewFrame(p.Landmarks, 0)
		if err != nil {
			return nil, err
		}
		if len(p.WorldLandmarks) > 0 {
			if f, err = f.WithWorld(p.WorldLandmarks); err != nil {
				return nil, err
			}
		}
		frames = append(frames, f)
	}
	return frames, nil
}
