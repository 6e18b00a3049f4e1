package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoSynth struct{}

func (echoSynth) Synthesize(_ context.Context, text string, _ Style) (Clip, error) {
	return Clip{PCM: []byte(text), SampleRate: DefaultSampleRate}, nil
}

// blockingPlayer plays until released or cancelled and tracks overlap.
type blockingPlayer struct {
	mu      sync.Mutex
	active  int32
	maxSeen int32
	played  []string
	release chan struct{}
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{release: make(chan struct{})}
}

func (p *blockingPlayer) Play(ctx context.Context, clip Clip) error {
	n := atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)

	p.mu.Lock()
	if n > p.maxSeen {
		p.maxSeen = n
	}
	p.played = append(p.played, string(clip.PCM))
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

func (p *blockingPlayer) snapshot() (int32, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSeen, append([]string(nil), p.played...)
}

func TestOutputNeverOverlaps(t *testing.T) {
	player := newBlockingPlayer()
	out := NewOutput(echoSynth{}, player)

	out.Speak("one", Style{})
	out.Speak("two", Style{})
	out.Speak("three", Style{})

	require.Eventually(t, func() bool {
		_, played := player.snapshot()
		return len(played) > 0 && played[len(played)-1] == "three"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, out.IsSpeaking())

	close(player.release)
	require.Eventually(t, func() bool { return !out.IsSpeaking() }, time.Second, 5*time.Millisecond)

	maxSeen, _ := player.snapshot()
	assert.Equal(t, int32(1), maxSeen)
}

func TestOutputStopSilences(t *testing.T) {
	player := newBlockingPlayer()
	out := NewOutput(echoSynth{}, player)

	out.Speak("hello", Style{})
	require.Eventually(t, func() bool {
		_, played := player.snapshot()
		return len(played) == 1
	}, time.Second, 5*time.Millisecond)

	out.Stop()
	assert.False(t, out.IsSpeaking())
	assert.Equal(t, int32(0), atomic.LoadInt32(&player.active))
}

func TestOutputMutedAndInert(t *testing.T) {
	player := newBlockingPlayer()
	out := NewOutput(echoSynth{}, player)
	out.SetMuted(true)
	out.Speak("shh", Style{})
	assert.False(t, out.IsSpeaking())

	inert := NewOutput(nil, nil)
	inert.Speak("nothing", Style{})
	assert.False(t, inert.IsSpeaking())

	_, played := player.snapshot()
	assert.Empty(t, played)
}

func TestOutputRestrainedMuffles(t *testing.T) {
	player := newBlockingPlayer()
	close(player.release)
	out := NewOutput(echoSynth{}, player)
	out.SetRestrained(true)

	done := make(chan string, 1)
	out.OnDone(func(text string) { done <- text })
	out.Speak("I love snacks", Style{})

	select {
	case text := <-done:
		assert.Equal(t, "Mmph mmm Mmph!", text)
	case <-time.After(time.Second):
		t.Fatal("utterance did not finish")
	}
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, string, Style) (Clip, error) {
	return Clip{}, errors.New("boom")
}

func TestOutputSynthFailureDoesNotCallDone(t *testing.T) {
	out := NewOutput(failingSynth{}, newBlockingPlayer())
	var called atomic.Bool
	out.OnDone(func(string) { called.Store(true) })

	out.Speak("hi", Style{})
	require.Eventually(t, func() bool { return !out.IsSpeaking() }, time.Second, 5*time.Millisecond)
	assert.False(t, called.Load())
}

func TestGeminiSynthesize(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	var gotPrompt, gotVoice, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultTTSModel+":generateContent"))

		var req ttsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text
		gotVoice = req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":"` +
			base64.StdEncoding.EncodeToString(pcm) + `"}}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	clip, err := g.Synthesize(context.Background(), "Yay!", Style{Pitch: 1.5, Rate: 1.25})
	require.NoError(t, err)

	assert.Equal(t, pcm, clip.PCM)
	assert.Equal(t, 24000, clip.SampleRate)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "Puck", gotVoice)
	assert.Equal(t, "Say in a cute, energetic robot voice: excitedly, Yay!", gotPrompt)
}

func TestGeminiSynthesizeNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"nope"}]}}]}`))
	}))
	defer srv.Close()

	_, err := NewGemini(GeminiConfig{BaseURL: srv.URL}).Synthesize(context.Background(), "hi", Style{})
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestSampleRate(t *testing.T) {
	tests := []struct {
		mime string
		want int
	}{
		{"audio/L16;codec=pcm;rate=24000", 24000},
		{"audio/L16; rate=16000", 16000},
		{"audio/L16", DefaultSampleRate},
		{"audio/L16;rate=abc", DefaultSampleRate},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, sampleRate(tt.mime))
		})
	}
}
