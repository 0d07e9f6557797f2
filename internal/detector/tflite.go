package detector

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/mattn/go-tflite"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/minime/internal/landmark"
	"github.com/ayusman/minime/internal/logger"
)

// BlazePose landmark model layout: 39 keypoints of (x, y, z, visibility, presence) for the
// image landmarks, 39 of (x, y, z) for world landmarks. The last six are auxiliary ROI points.
const (
	blazeKeypoints      = 39
	blazeLandmarkValues = blazeKeypoints * 5
	blazeWorldValues    = blazeKeypoints * 3
)

// TFLiteDetector runs the BlazePose landmark model in-process. It expects the person to
// roughly fill the frame, since it skips the separate person-detection stage.
type TFLiteDetector struct {
	mu     sync.Mutex
	config Config
	model  *tflite.Model
	interp *tflite.Interpreter
}

// NewTFLiteDetector loads cfg.ModelPath.
func NewTFLiteDetector(cfg Config) (*TFLiteDetector, error) {
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot load model %s", ErrDetectorUnavailable, cfg.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	options.SetNumThread(threads)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter", ErrDetectorUnavailable)
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: allocate tensors failed", ErrDetectorUnavailable)
	}

	input := interp.GetInputTensor(0)
	logger.Log().Info("tflite pose model loaded",
		zap.String("model", cfg.ModelPath),
		zap.Ints("input_shape", tensorShape(input)),
		zap.Int("threads", threads))

	return &TFLiteDetector{config: cfg, model: model, interp: interp}, nil
}

// Detect implements Detector.
func (d *TFLiteDetector) Detect(frame *gocv.Mat) ([]*landmark.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	input := d.interp.GetInputTensor(0)
	if input.Type() != tflite.Float32 {
		return nil, fmt.Errorf("unsupported input tensor type %v", input.Type())
	}
	if err := fillInput(input, *frame); err != nil {
		return nil, err
	}

	if status := d.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke failed: %v", status)
	}

	var points, world []float32
	flag := float32(1)
	for i := 0; i < d.interp.GetOutputTensorCount(); i++ {
		out := d.interp.GetOutputTensor(i)
		if out.Type() != tflite.Float32 {
			continue
		}
		v := out.Float32s()
		switch len(v) {
		case blazeLandmarkValues:
			points = v
		case blazeWorldValues:
			world = v
		case 1:
			flag = v[0]
		}
	}
	if points == nil {
		return nil, fmt.Errorf("model has no %d-value landmark output", blazeLandmarkValues)
	}

	return decodeBlazePose(points, world, flag, input.Dim(2), input.Dim(1), d.config.MinConfidence)
}

// Close releases the interpreter and model.
func (d *TFLiteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.interp != nil {
		d.interp.Delete()
		d.interp = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
	return nil
}

// fillInput converts a BGR frame into the model's RGB float input in [0,1].
func fillInput(input *tflite.Tensor, img gocv.Mat) error {
	width, height := input.Dim(2), input.Dim(1)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)

	scaled := gocv.NewMat()
	defer scaled.Close()
	resized.ConvertTo(&scaled, gocv.MatTypeCV32FC3)

	v, err := scaled.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("read input pixels: %w", err)
	}
	data := make([]float32, len(v))
	for i, p := range v {
		data[i] = p / 255
	}
	input.SetFloat32s(data)
	return nil
}

// decodeBlazePose turns raw model outputs into a landmark frame. Coordinates are in input
// pixels; visibility and presence are logits.
func decodeBlazePose(points, world []float32, flag float32, width, height int, minConfidence float64) ([]*landmark.Frame, error) {
	if float64(flag) < minConfidence {
		return []*landmark.Frame{}, nil
	}

	lms := make([]landmark.Landmark, landmark.NumLandmarks)
	for i := range lms {
		p := points[i*5 : i*5+5]
		lms[i] = landmark.Landmark{
			X:          float64(p[0]) / float64(width),
			Y:          float64(p[1]) / float64(height),
			Z:          float64(p[2]) / float64(width),
			Visibility: sigmoid(p[3]),
			Presence:   sigmoid(p[4]),
		}
	}

	f, err := landmark.NewFrame(lms, 0)
	if err != nil {
		return nil, err
	}

	if len(world) == blazeWorldValues {
		w := make([]landmark.Landmark, landmark.NumLandmarks)
		for i := range w {
			w[i] = landmark.Landmark{
				X:          float64(world[i*3]),
				Y:          float64(world[i*3+1]),
				Z:          float64(world[i*3+2]),
				Visibility: lms[i].Visibility,
				Presence:   lms[i].Presence,
			}
		}
		if f, err = f.WithWorld(w); err != nil {
			return nil, err
		}
	}

	return []*landmark.Frame{f}, nil
}

func sigmoid(x float32) float64 {
	return 1 / (1 + math.Exp(-float64(x)))
}

func tensorShape(t *tflite.Tensor) []int {
	shape := []int{}
	for i := 0; i < t.NumDims(); i++ {
		shape = append(shape, t.Dim(i))
	}
	return shape
}
