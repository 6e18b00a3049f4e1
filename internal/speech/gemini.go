package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTTSModel   = "gemini-2.5-flash-preview-tts"
	DefaultVoice      = "Puck"
	DefaultSampleRate = 24000

	voicePrompt = "Say in a cute, energetic robot voice: "
)

// ErrNoAudio is returned when a synthesis response carries no audio part.
var ErrNoAudio = errors.New("speech: response has no audio")

// GeminiConfig configures the Gemini text-to-speech synthesizer.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Timeout time.Duration
}

// Gemini synthesizes speech with the Gemini TTS model.
type Gemini struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGemini builds a synthesizer, filling defaults for empty fields.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gemini{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type ttsRequest struct {
	Contents         []ttsContent     `json:"contents"`
	GenerationConfig ttsGenerationCfg `json:"generationConfig"`
}

type ttsContent struct {
	Parts []ttsPart `json:"parts"`
}

type ttsPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *ttsInlineData `json:"inlineData,omitempty"`
}

type ttsInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type ttsGenerationCfg struct {
	ResponseModalities []string        `json:"responseModalities"`
	SpeechConfig       ttsSpeechConfig `json:"speechConfig"`
}

type ttsSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type ttsResponse struct {
	Candidates []struct {
		Content ttsContent `json:"content"`
	} `json:"candidates"`
}

// Synthesize requests audio for text. The style shapes the spoken prompt,
// since the model takes delivery hints as text.
func (g *Gemini) Synthesize(ctx context.Context, text string, style Style) (Clip, error) {
	payload := ttsRequest{
		Contents: []ttsContent{{Parts: []ttsPart{{Text: prompt(text, style)}}}},
	}
	payload.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	payload.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = g.cfg.Voice

	body, err := json.Marshal(payload)
	if err != nil {
		return Clip{}, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Clip{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Clip{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Clip{}, fmt.Errorf("speech request failed: %s", resp.Status)
	}

	var out ttsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Clip{}, fmt.Errorf("decode speech response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return Clip{}, ErrNoAudio
	}
	for _, part := range out.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return Clip{}, fmt.Errorf("decode audio: %w", err)
		}
		return Clip{PCM: pcm, SampleRate: sampleRate(part.InlineData.MimeType)}, nil
	}
	return Clip{}, ErrNoAudio
}

func prompt(text string, style Style) string {
	var hint string
	switch {
	case style.Pitch >= 1.4:
		hint = "excitedly, "
	case style.Pitch > 0 && style.Pitch < 1:
		hint = "grumpily, "
	case style.Rate > 0 && style.Rate < 1:
		hint = "slowly and woozily, "
	}
	return voicePrompt + hint + text
}

// sampleRate reads the rate parameter of an "audio/L16;codec=pcm;rate=24000"
// mime type.
func sampleRate(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || k != "rate" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSampleRate
}
