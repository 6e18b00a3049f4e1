package speech

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"
)

// OtoPlayer plays PCM clips on the default audio device. The process may
// own only one oto context, so create a single player.
type OtoPlayer struct {
	ctx        *oto.Context
	sampleRate int
	poll       time.Duration
}

// NewOtoPlayer opens the audio device for mono s16le at sampleRate.
func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready
	log.Info().Int("sample_rate", sampleRate).Msg("audio device ready")
	return &OtoPlayer{ctx: octx, sampleRate: sampleRate, poll: 20 * time.Millisecond}, nil
}

// Play blocks until the clip finishes or ctx is cancelled.
func (p *OtoPlayer) Play(ctx context.Context, clip Clip) error {
	if clip.SampleRate != 0 && clip.SampleRate != p.sampleRate {
		return fmt.Errorf("clip sample rate %d does not match device rate %d", clip.SampleRate, p.sampleRate)
	}
	if len(clip.PCM) == 0 {
		return nil
	}

	player := p.ctx.NewPlayer(bytes.NewReader(clip.PCM))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
