package bridge

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"eilo/internal/chat"
	"eilo/internal/companion"
	"eilo/internal/pet"
	"eilo/internal/sensor"
	"eilo/internal/session"
)

// Message types
const (
	TypeMotion      = "motion"
	TypeOrientation = "orientation"
	TypeFrame       = "frame"
	TypePet         = "pet"
	TypeActivity    = "activity"
	TypeChat        = "chat"
	TypeSignIn      = "signin"
	TypeSignOut     = "signout"
	TypePing        = "ping"

	TypeMood   = "mood"
	TypeStatus = "status"
	TypePong   = "pong"
	TypeError  = "error"
)

// outboxSize bounds queued pushes per connection; a slow page drops
// mood updates rather than stalling the mood machine.
const outboxSize = 32

// maxMessageBytes is the read limit per websocket message. Frames carry a
// base64 JPEG, well past the library's 32 KiB default.
const maxMessageBytes = 4 << 20

// inbound is one message from the page.
type inbound struct {
	Type string `json:"type"`

	sensor.Motion
	sensor.Orientation

	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	JPEG   []byte `json:"jpeg,omitempty"`

	Text        string `json:"text,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// outbound is one message to the page.
type outbound struct {
	Type    string `json:"type"`
	Mood    string `json:"mood,omitempty"`
	From    string `json:"from,omitempty"`
	Trigger string `json:"trigger,omitempty"`
	Awake   *bool  `json:"awake,omitempty"`
	User    string `json:"user,omitempty"`
	Scene   string `json:"scene,omitempty"`
	Balance *int   `json:"balance,omitempty"`
	Error   string `json:"error,omitempty"`
}

func moodMessage(tr pet.Transition) outbound {
	awake := tr.Awake
	return outbound{
		Type:    TypeMood,
		Mood:    string(tr.To),
		From:    string(tr.From),
		Trigger: string(tr.Trigger),
		Awake:   &awake,
	}
}

func statusMessage(st companion.Status) outbound {
	awake := st.Pet.Awake
	balance := st.Settings.Balance
	msg := outbound{
		Type:    TypeStatus,
		Mood:    string(st.Pet.Mood),
		Awake:   &awake,
		Scene:   string(st.Scene),
		Balance: &balance,
	}
	if st.User != nil {
		msg.User = st.User.ID
	}
	return msg
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.Origins,
	})
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept failed")
		return
	}
	defer ws.CloseNow()
	ws.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log.Info().Str("remote", r.RemoteAddr).Msg("sensor page connected")

	outbox := make(chan outbound, outboxSize)
	push := func(msg outbound) {
		select {
		case outbox <- msg:
		default:
			log.Debug().Str("type", msg.Type).Msg("outbox full, dropping")
		}
	}

	unsub := s.companion.Subscribe(func(tr pet.Transition) { push(moodMessage(tr)) })
	defer unsub()
	push(statusMessage(s.companion.Status()))

	go s.writeLoop(ctx, ws, outbox)
	s.readLoop(ctx, ws, push)

	ws.Close(websocket.StatusNormalClosure, "bye")
	log.Info().Str("remote", r.RemoteAddr).Msg("sensor page disconnected")
}

func (s *Server) writeLoop(ctx context.Context, ws *websocket.Conn, outbox <-chan outbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			if err := wsjson.Write(ctx, ws, msg); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, push func(outbound)) {
	for {
		var msg inbound
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		s.dispatch(ctx, msg, push)
	}
}

func (s *Server) dispatch(ctx context.Context, msg inbound, push func(outbound)) {
	switch msg.Type {
	case TypeMotion:
		s.companion.Motion(msg.Motion)
	case TypeOrientation:
		s.companion.Orientation(msg.Orientation)
	case TypeFrame:
		if len(msg.JPEG) == 0 {
			push(outbound{Type: TypeError, Error: "frame without image"})
			return
		}
		s.companion.Frame(sensor.Frame{Width: msg.Width, Height: msg.Height, JPEG: msg.JPEG})
	case TypePet:
		s.companion.Pet(ctx)
	case TypeActivity:
		s.companion.Activity()
	case TypeChat:
		go s.chat(ctx, msg.Text, push)
	case TypeSignIn:
		if s.opts.Accounts == nil || msg.UserID == "" {
			push(outbound{Type: TypeError, Error: "sign-in not available"})
			return
		}
		s.opts.Accounts.SignIn(session.User{ID: msg.UserID, DisplayName: msg.DisplayName})
		push(statusMessage(s.companion.Status()))
	case TypeSignOut:
		if s.opts.Accounts != nil {
			s.opts.Accounts.SignOut()
			push(statusMessage(s.companion.Status()))
		}
	case TypePing:
		push(outbound{Type: TypePong})
	default:
		push(outbound{Type: TypeError, Error: "unknown message type " + msg.Type})
	}
}

func (s *Server) chat(ctx context.Context, text string, push func(outbound)) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ChatTimeout)
	defer cancel()

	err := s.companion.Send(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBusy):
		push(outbound{Type: TypeError, Error: "still thinking"})
	case errors.Is(err, chat.ErrEmpty), errors.Is(err, chat.ErrAsleep), errors.Is(err, chat.ErrSignedOut):
		push(outbound{Type: TypeError, Error: err.Error()})
	default:
		log.Warn().Err(err).Msg("bridge chat failed")
	}
}
