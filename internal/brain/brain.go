// Package brain talks to the generative-language API behind Eilo's
// replies and scene classification.
package brain

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"eilo/internal/sensor"
)

// DefaultPersona is Eilo's system instruction when no profile overrides it.
const DefaultPersona = "You are Eilo, a sweet, energetic robot with cute blue eyes. Use emojis like ✨, 🎀, 🧸. NO skulls or crying."

// CannedReply is the local-only reply used without an API key.
const CannedReply = "I'm vibing! ✨"

// ErrUnavailable is returned by a brain that cannot perform a request.
var ErrUnavailable = errors.New("brain: unavailable")

// ErrEmptyReply is returned when the API answers with nothing usable.
var ErrEmptyReply = errors.New("brain: empty reply")

// Brain produces replies and classifies camera frames.
type Brain interface {
	Converse(ctx context.Context, text string, scene sensor.Scene) (string, error)
	ClassifyScene(ctx context.Context, frame sensor.Frame) (sensor.Scene, error)
}

// Local is the canned brain for local-only mode.
type Local struct {
	Reply string
}

// Converse returns the canned reply.
func (l Local) Converse(ctx context.Context, _ string, _ sensor.Scene) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.Reply == "" {
		return CannedReply, nil
	}
	return l.Reply, nil
}

// ClassifyScene is not possible offline.
func (Local) ClassifyScene(context.Context, sensor.Frame) (sensor.Scene, error) {
	return sensor.SceneUnknown, ErrUnavailable
}

func sceneHint(scene sensor.Scene) string {
	switch scene {
	case sensor.SceneHolding:
		return "(Right now someone is holding you up in the air.) "
	case sensor.SceneCeiling:
		return "(Right now you are staring up at the ceiling.) "
	case sensor.SceneDesk:
		return "(Right now you are sitting safely on a desk.) "
	default:
		return ""
	}
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// cleanReply strips model artifacts and wrapping quotes.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(thinkBlock.ReplaceAllString(reply, ""))

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				reply = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close))
				break
			}
		}
	}
	return reply
}

// isGarbageReply reports replies that are really error pages.
func isGarbageReply(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "<html") || strings.TrimSpace(s) == ""
}
