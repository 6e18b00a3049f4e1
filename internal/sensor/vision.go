package sensor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/clock"
)

// DefaultVisionInterval is the scene classification period.
const DefaultVisionInterval = 6500 * time.Millisecond

// ErrNoFrame is returned by a camera that has nothing to capture yet.
var ErrNoFrame = errors.New("sensor: no camera frame")

// Camera captures a frame on demand.
type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

// Classifier labels a frame.
type Classifier interface {
	ClassifyScene(ctx context.Context, frame Frame) (Scene, error)
}

// VisionOptions configure a Vision loop.
type VisionOptions struct {
	Clock    clock.Clock // defaults to the wall clock
	Interval time.Duration
	Gate     func() bool // vision on, awake, no turn in flight, chaos off
	OnScene  func(Scene)
}

// Vision periodically classifies camera frames.
type Vision struct {
	camera     Camera
	classifier Classifier
	opts       VisionOptions

	mu         sync.Mutex
	last       Scene
	classified bool
}

// NewVision creates a vision loop. A nil camera or classifier leaves it inert.
func NewVision(camera Camera, classifier Classifier, opts VisionOptions) *Vision {
	if opts.Interval <= 0 {
		opts.Interval = DefaultVisionInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Vision{camera: camera, classifier: classifier, opts: opts, last: SceneUnknown}
}

// Last returns the most recent scene.
func (v *Vision) Last() Scene {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Poll runs one classification if the gate allows it. It reports whether a
// scene was delivered. Failures fall back to the last known scene, or desk
// if nothing was ever classified.
func (v *Vision) Poll(ctx context.Context) (Scene, bool) {
	if v.camera == nil || v.classifier == nil {
		return SceneUnknown, false
	}
	if v.opts.Gate != nil && !v.opts.Gate() {
		return v.Last(), false
	}

	scene, err := v.classify(ctx)

	v.mu.Lock()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			v.mu.Unlock()
			return v.last, false
		}
		log.Debug().Err(err).Msg("scene classification failed")
		if !v.classified {
			v.last = SceneDesk
		}
	} else {
		v.last = scene
		v.classified = true
	}
	scene = v.last
	v.mu.Unlock()

	if v.opts.OnScene != nil {
		v.opts.OnScene(scene)
	}
	return scene, true
}

func (v *Vision) classify(ctx context.Context) (Scene, error) {
	frame, err := v.camera.Capture(ctx)
	if err != nil {
		return SceneUnknown, err
	}
	return v.classifier.ClassifyScene(ctx, frame)
}

// Run polls on the interval until ctx is done. The next poll is armed only
// after the previous one finishes.
func (v *Vision) Run(ctx context.Context) {
	if v.camera == nil || v.classifier == nil {
		return
	}
	due := make(chan struct{}, 1)
	timer := clock.NewHandle(v.opts.Clock, "vision")
	defer timer.Cancel()
	arm := func() {
		timer.Arm(v.opts.Interval, func() {
			select {
			case due <- struct{}{}:
			default:
			}
		})
	}

	arm()
	for {
		select {
		case <-ctx.Done():
			return
		case <-due:
			v.Poll(ctx)
			arm()
		}
	}
}

// FrameBuffer is a Camera fed by pushed frames, such as those streamed by
// the sensor bridge. Capture returns the newest frame.
type FrameBuffer struct {
	mu    sync.Mutex
	frame *Frame
}

// Push stores a frame, replacing the previous one.
func (b *FrameBuffer) Push(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = &f
}

// Capture returns the newest frame, or ErrNoFrame.
func (b *FrameBuffer) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return Frame{}, ErrNoFrame
	}
	return *b.frame, nil
}
