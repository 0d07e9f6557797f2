package present

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/pose"
)

// JointMessage is the wire form of one solved joint. Rotation is x, y, z, w.
type JointMessage struct {
	Name        string     `json:"name"`
	Index       int        `json:"index"`
	Translation [3]float64 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"`
	Scale       [3]float64 `json:"scale"`
}

// Message is one line of the avatar stream.
type Message struct {
	TimestampMS    int64               `json:"timestamp_ms"`
	Joints         []JointMessage      `json:"joints"`
	WorldLandmarks []landmark.Landmark `json:"world_landmarks,omitempty"`
}

// Encode converts a scene into its wire form.
func Encode(frame *landmark.Frame, pf *pose.PoseFrame) Message {
	msg := Message{Joints: []JointMessage{}}
	if frame != nil {
		msg.TimestampMS = frame.Timestamp.Milliseconds()
		msg.WorldLandmarks = frame.World
	}
	for _, j := range pf.Joints() {
		tr := j.Transform
		msg.Joints = append(msg.Joints, JointMessage{
			Name:        j.Joint,
			Index:       j.Index,
			Translation: [3]float64(tr.Translation),
			Rotation:    [4]float64{tr.Rotation.V[0], tr.Rotation.V[1], tr.Rotation.V[2], tr.Rotation.W},
			Scale:       [3]float64(tr.Scale),
		})
	}
	return msg
}

// JSONRenderer writes one Message per tracked scene as a JSON line. Scenes without a
// landmark frame are skipped.
type JSONRenderer struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewJSONRenderer creates a JSONRenderer writing to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{w: w, enc: json.NewEncoder(w)}
}

// Render implements Renderer.
func (r *JSONRenderer) Render(ctx context.Context, scene Scene) error {
	if scene.Frame.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(Encode(scene.Frame, scene.Pose))
}

// Close closes the writer if it is an io.Closer.
func (r *JSONRenderer) Close() error {
	if c, ok := r.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
