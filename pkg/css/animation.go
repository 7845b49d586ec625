package css

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// RefreshRate is the animation frame cadence. Transition durations are
// converted to whole frame counts against it.
const RefreshRate = 33 * time.Millisecond

// NumericAnimation linearly interpolates a numeric property value over a
// fixed number of animation frames.
type NumericAnimation struct {
	tween      *gween.Tween
	frameCount int
	numFrames  int
	newValue   float64
}

// NewNumericAnimation builds an animation from the old and new property
// values. Returns an error if either value is not numeric.
func NewNumericAnimation(oldValue, newValue string, numFrames int) (*NumericAnimation, error) {
	o, err := strconv.ParseFloat(strings.TrimSpace(oldValue), 64)
	if err != nil {
		return nil, fmt.Errorf("css: transition start %q: %w", oldValue, err)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(newValue), 64)
	if err != nil {
		return nil, fmt.Errorf("css: transition end %q: %w", newValue, err)
	}
	if numFrames < 1 {
		numFrames = 1
	}
	return &NumericAnimation{
		tween:     gween.New(float32(o), float32(n), float32(numFrames), ease.Linear),
		numFrames: numFrames,
		newValue:  n,
	}, nil
}

// Animate advances one frame and returns the interpolated value. Once the
// frame counter reaches the configured count it reports ok=false and the
// cascade drops the animation entry.
func (a *NumericAnimation) Animate() (string, bool) {
	if a.frameCount >= a.numFrames {
		return "", false
	}
	a.frameCount++
	value, done := a.tween.Update(1)
	v := float64(value)
	if done {
		// Land exactly on the target, not a float-rounded neighbor.
		v = a.newValue
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

// ParseTransition parses a transition declaration ("opacity 2s, width 1s")
// into a map of property name to frame count.
func ParseTransition(value string) map[string]int {
	properties := make(map[string]int)
	if value == "" {
		return properties
	}
	for _, item := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), " ", 2)
		if len(parts) != 2 {
			continue
		}
		duration := strings.TrimSpace(parts[1])
		if !strings.HasSuffix(duration, "s") {
			continue
		}
		seconds, err := strconv.ParseFloat(strings.TrimSuffix(duration, "s"), 64)
		if err != nil {
			continue
		}
		frames := int(seconds / RefreshRate.Seconds())
		if frames < 1 {
			frames = 1
		}
		properties[strings.ToLower(parts[0])] = frames
	}
	return properties
}
