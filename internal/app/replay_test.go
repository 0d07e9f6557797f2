package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/present"
)

func recordedFrames(t *testing.T, n int) []*landmark.Frame {
	t.Helper()
	frames := make([]*landmark.Frame, n)
	for i := range frames {
		f, err := landmark.NewFrame(landmark.TPosePoints(), time.Duration(i)*33*time.Millisecond)
		require.NoError(t, err)
		frames[i] = f
	}
	return frames
}

func TestReplay_WritesOneMessagePerFrame(t *testing.T) {
	solver, err := LoadSolver(testConfig().Avatar, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	progress := 0
	err = Replay(context.Background(), solver, recordedFrames(t, 3), present.NewJSONRenderer(&out), func() { progress++ })
	require.NoError(t, err)
	assert.Equal(t, 3, progress)

	lines := 0
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var msg present.Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &msg))
		assert.Len(t, msg.Joints, 13)
		assert.Equal(t, int64(lines*33), msg.TimestampMS)
		lines++
	}
	assert.Equal(t, 3, lines)
	assert.Equal(t, uint64(3), solver.Stats().Solves)
}

func TestReplay_StopsOnCancel(t *testing.T) {
	solver, err := LoadSolver(testConfig().Avatar, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &sceneRecorder{}
	err = Replay(ctx, solver, recordedFrames(t, 2), rec, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.scenes)
}
