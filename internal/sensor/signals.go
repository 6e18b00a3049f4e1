// Package sensor normalizes device motion, orientation and camera frames
// into the few signals Eilo reacts to.
package sensor

import (
	"math"
	"strings"
	"sync"
)

// Default thresholds
const (
	DefaultShakeThreshold = 30.0 // m/s² on any axis
	DefaultTiltThreshold  = 60.0 // degrees of |beta| away from level
)

// Scene is the camera's view of where Eilo is.
type Scene string

const (
	SceneUnknown Scene = "unknown"
	SceneHolding Scene = "holding"
	SceneCeiling Scene = "ceiling"
	SceneDesk    Scene = "desk"
)

// IsHigh reports whether the scene means Eilo has been picked up.
func (s Scene) IsHigh() bool {
	return s == SceneHolding || s == SceneCeiling
}

// ParseScene maps a free-form one-word label onto a Scene.
func ParseScene(label string) (Scene, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, s := range []Scene{SceneHolding, SceneCeiling, SceneDesk} {
		if strings.Contains(l, string(s)) {
			return s, true
		}
	}
	return SceneUnknown, false
}

// Motion is one device-motion sample.
type Motion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Orientation is one device-orientation sample in degrees.
type Orientation struct {
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Frame is one captured camera image.
type Frame struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	JPEG   []byte `json:"jpeg"`
}

// Signals is the normalized sensor view.
type Signals struct {
	IsShaking     bool
	IsLookingDown bool
	Scene         Scene
}

// Thresholds tune the normalizer.
type Thresholds struct {
	Shake float64
	Tilt  float64
}

// Shaking reports whether any axis exceeds the threshold.
func Shaking(m Motion, threshold float64) bool {
	return math.Abs(m.X) > threshold || math.Abs(m.Y) > threshold || math.Abs(m.Z) > threshold
}

// LookingDown reports whether the device is tilted past the threshold.
func LookingDown(o Orientation, threshold float64) bool {
	return math.Abs(o.Beta) > threshold
}

// Normalizer folds raw samples into the latest Signals.
type Normalizer struct {
	mu         sync.Mutex
	thresholds Thresholds
	current    Signals
}

// NewNormalizer creates a normalizer with an unknown scene.
func NewNormalizer(t Thresholds) *Normalizer {
	if t.Shake <= 0 {
		t.Shake = DefaultShakeThreshold
	}
	if t.Tilt <= 0 {
		t.Tilt = DefaultTiltThreshold
	}
	return &Normalizer{thresholds: t, current: Signals{Scene: SceneUnknown}}
}

// Motion folds in a motion sample. Shaking is instantaneous.
func (n *Normalizer) Motion(m Motion) Signals {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current.IsShaking = Shaking(m, n.thresholds.Shake)
	return n.current
}

// Orientation folds in an orientation sample.
func (n *Normalizer) Orientation(o Orientation) Signals {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current.IsShaking = false
	n.current.IsLookingDown = LookingDown(o, n.thresholds.Tilt)
	return n.current
}

// Scene records the latest classification.
func (n *Normalizer) Scene(s Scene) Signals {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current.IsShaking = false
	n.current.Scene = s
	return n.current
}

// Current returns the latest signals.
func (n *Normalizer) Current() Signals {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
