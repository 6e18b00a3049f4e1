package brain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"eilo/internal/sensor"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-preview-09-2025"

	classifyPrompt = "Look at this camera frame from a small desk robot. Answer with exactly one word: holding (someone is holding the robot up), ceiling (the camera sees the ceiling), or desk (the robot is resting on a surface)."
)

// Config configures the Gemini client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   RetryConfig
	Limiter *Limiter
}

// Gemini is the remote brain.
type Gemini struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.RWMutex
	persona string
}

// NewGemini builds a client, filling defaults for empty fields.
func NewGemini(cfg Config) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0.2, 2)
	}
	return &Gemini{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		persona:    DefaultPersona,
	}
}

// SetPersona replaces the system instruction. Empty restores the default.
func (g *Gemini) SetPersona(instruction string) {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultPersona
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.persona = instruction
}

// Persona returns the active system instruction.
func (g *Gemini) Persona() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.persona
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Converse sends text with a scene hint under the persona instruction.
func (g *Gemini) Converse(ctx context.Context, text string, scene sensor.Scene) (string, error) {
	req := generateRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: sceneHint(scene) + text}}}},
		SystemInstruction: &content{Parts: []part{{Text: g.Persona()}}},
	}

	var reply string
	err := Retry(ctx, g.cfg.Limiter, g.cfg.Retry, func() error {
		out, err := g.generate(ctx, req)
		if err != nil {
			return classify(err)
		}
		reply = cleanReply(out)
		if isGarbageReply(reply) {
			return ErrEmptyReply
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("converse: %w", err)
	}
	return reply, nil
}

// ClassifyScene asks for a one-word label for the frame. Classification is
// polled, so it makes a single attempt.
func (g *Gemini) ClassifyScene(ctx context.Context, frame sensor.Frame) (sensor.Scene, error) {
	if len(frame.JPEG) == 0 {
		return sensor.SceneUnknown, sensor.ErrNoFrame
	}
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{
			{Text: classifyPrompt},
			{InlineData: &inlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(frame.JPEG)}},
		}}},
	}

	if err := g.cfg.Limiter.Wait(ctx); err != nil {
		return sensor.SceneUnknown, err
	}
	out, err := g.generate(ctx, req)
	if err != nil {
		return sensor.SceneUnknown, fmt.Errorf("classify scene: %w", err)
	}
	scene, ok := sensor.ParseScene(out)
	if !ok {
		return sensor.SceneUnknown, fmt.Errorf("classify scene: unrecognized label %q", out)
	}
	return scene, nil
}

func (g *Gemini) generate(ctx context.Context, payload generateRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.Model), url.QueryEscape(g.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", &HTTPError{Status: resp.StatusCode, Body: string(b)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", ErrEmptyReply
	}

	var texts []string
	for _, p := range out.Candidates[0].Content.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	reply := strings.Join(texts, "\n")
	log.Debug().Int("chars", len(reply)).Str("model", g.cfg.Model).Msg("remote reply")
	return reply, nil
}
