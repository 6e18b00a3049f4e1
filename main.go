package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"eilo/internal/brain"
	"eilo/internal/bridge"
	"eilo/internal/clock"
	"eilo/internal/companion"
	"eilo/internal/config"
	"eilo/internal/logging"
	"eilo/internal/persona"
	"eilo/internal/pet"
	"eilo/internal/session"
	"eilo/internal/speech"
	"eilo/internal/store"
	"eilo/internal/ui"
)

// options are the command-line overrides on top of the environment.
type options struct {
	stats bool
	local bool
	user  string
	name  string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("eilo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&o.stats, "stats", false, "show the stats card and exit")
	fs.BoolVar(&o.local, "local", false, "run without the Gemini API")
	fs.StringVar(&o.user, "user", "", "user ID to sign in as")
	fs.StringVar(&o.name, "name", "", "display name for the user")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func (o options) apply(cfg *config.Config) {
	if o.local {
		cfg.APIKey = ""
	}
	if o.user != "" {
		cfg.UserID = o.user
	}
	if o.name != "" {
		cfg.DisplayName = o.name
	}
}

// newBrain picks the Gemini brain when an API key is configured.
func newBrain(cfg *config.Config) brain.Brain {
	if cfg.LocalOnly() {
		log.Info().Msg("no API key, replies are canned")
		return brain.Local{}
	}
	return brain.NewGemini(brain.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.APIBaseURL,
		Model:   cfg.ChatModel,
		Limiter: brain.NewLimiter(0.2, 2),
	})
}

// newSpeech returns the synthesizer and player, either of which may be nil.
func newSpeech(cfg *config.Config, openPlayer func(int) (speech.Player, error)) (speech.Synthesizer, speech.Player) {
	if cfg.LocalOnly() || !cfg.Audio {
		return nil, nil
	}
	synth := speech.NewGemini(speech.GeminiConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.APIBaseURL,
		Model:   cfg.TTSModel,
		Voice:   cfg.Voice,
	})
	player, err := openPlayer(speech.DefaultSampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("no audio device, Eilo will stay quiet")
		return synth, nil
	}
	return synth, player
}

func openOto(rate int) (speech.Player, error) {
	p, err := speech.NewOtoPlayer(rate)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// forward relays transitions to the UI, dropping them if it falls behind.
func forward(ch chan<- pet.Transition) func(pet.Transition) {
	return func(tr pet.Transition) {
		select {
		case ch <- tr:
		default:
		}
	}
}

func showStats(ctx context.Context, cfg *config.Config, st store.Store, personas *persona.Registry) error {
	settings, err := st.GetSettings(ctx, cfg.UserID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	profile := personas.ForUser(cfg.UserID, settings.Persona)
	ui.DisplayStats(ui.StatsModel{
		Name:     profile.Name,
		User:     session.User{ID: cfg.UserID, DisplayName: cfg.DisplayName},
		Settings: settings,
	})
	return nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts.apply(cfg)

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	st, err := store.NewSQLite(cfg.DBPath, clock.Real{})
	if err != nil {
		return err
	}
	defer st.Close()

	personas, err := persona.LoadDirs(cfg.PersonaDir)
	if err != nil {
		return err
	}

	if opts.stats {
		return showStats(ctx, cfg, st, personas)
	}

	synth, player := newSpeech(cfg, openOto)
	users := session.NewStatic(&session.User{ID: cfg.UserID, DisplayName: cfg.DisplayName})

	c := companion.New(companion.Deps{
		Clock:    clock.Real{},
		Store:    st,
		Brain:    newBrain(cfg),
		Synth:    synth,
		Player:   player,
		Personas: personas,
		Users:    users,
		Behavior: cfg.Behavior,
	})

	transitions := make(chan pet.Transition, 16)
	unsubscribe := c.Subscribe(forward(transitions))
	defer unsubscribe()

	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	if cfg.BridgeEnabled() {
		srv := bridge.New(c, bridge.Options{Accounts: users, ChatTimeout: cfg.Behavior.TurnTimeout})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.BridgeAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.BridgeAddr).Msg("sensor bridge stopped")
			}
		}()
	}

	log.Info().Str("user", cfg.UserID).Bool("local_only", cfg.LocalOnly()).Msg("eilo starting")

	program := tea.NewProgram(ui.NewModel(ctx, c, transitions),
		tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Printf("Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
}
