package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/metrics"
)

const (
	Greeting = "Hello! I'm your healthcare assistant. How can I help you today?"

	MsgTextFailed  = "Sorry, I'm having trouble responding. Please try again later."
	MsgAudioFailed = "Sorry, I couldn't process your audio. Please try again."
	MsgNoMic       = "Couldn't access microphone. Please check permissions."
	MsgNoResponse  = "Failed to get response"
)

var (
	ErrBusy         = errors.New("a message is already awaiting a response")
	ErrClosed       = errors.New("chat widget is closed")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotRecording = errors.New("no recording in progress")
	ErrDisposed     = errors.New("chat widget was torn down")
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Text    string `json:"text"`
	Sender  Sender `json:"sender"`
	IsError bool   `json:"isError,omitempty"`
}

type State string

const (
	StateClosed    State = "closed"
	StateOpenIdle  State = "open-idle"
	StateAwaiting  State = "open-awaiting-response"
	StateRecording State = "recording"
)

type phase int

const (
	phaseIdle phase = iota
	phaseAwaiting
	phaseRecording
)

// Responder is the backend conversation endpoint.
type Responder interface {
	ChatText(ctx context.Context, conversationID, question string) (*backend.ChatReply, error)
	ChatAudio(ctx context.Context, conversationID string, audio backend.Audio) (*backend.ChatReply, error)
}

// Locker serializes round trips of one conversation across replicas.
type Locker interface {
	WithConversationLock(ctx context.Context, conversationID string, fn func(ctx context.Context) error) error
}

// Snapshot is the widget as the browser renders it.
type Snapshot struct {
	State          State     `json:"state"`
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
	CanSend        bool      `json:"canSend"`
}

// Widget is one session's chat. It allows a single outstanding request and
// ignores responses that arrive after Teardown.
type Widget struct {
	responder Responder
	locker    Locker
	device    Device
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu             sync.Mutex
	conversationID string
	open           bool
	phase          phase
	messages       []Message
	capture        *Capture
	disposed       bool
}

func newWidget(responder Responder, locker Locker, device Device, m *metrics.Metrics, logger zerolog.Logger) *Widget {
	return &Widget{
		responder:      responder,
		locker:         locker,
		device:         device,
		metrics:        m,
		logger:         logger,
		conversationID: uuid.NewString(),
		messages:       []Message{{Text: Greeting, Sender: SenderBot}},
	}
}

func (w *Widget) ConversationID() string {
	return w.conversationID
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Widget) snapshotLocked() Snapshot {
	state := StateClosed
	if w.open {
		switch w.phase {
		case phaseAwaiting:
			state = StateAwaiting
		case phaseRecording:
			state = StateRecording
		default:
			state = StateOpenIdle
		}
	}
	return Snapshot{
		State:          state,
		ConversationID: w.conversationID,
		Messages:       append([]Message(nil), w.messages...),
		CanSend:        w.open && w.phase == phaseIdle && !w.disposed,
	}
}

// Toggle opens or closes the widget. Closing stops a recording in progress;
// a pending response still lands in the transcript.
func (w *Widget) Toggle() (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return Snapshot{}, ErrDisposed
	}

	w.open = !w.open
	if !w.open && w.phase == phaseRecording {
		w.releaseCaptureLocked()
		w.phase = phaseIdle
	}
	return w.snapshotLocked(), nil
}

// SendText appends the user's message, waits for exactly one bot or error
// message and returns the widget as it stands afterwards.
func (w *Widget) SendText(ctx context.Context, text string) (Snapshot, error) {
	text = strings.TrimSpace(text)

	w.mu.Lock()
	if err := w.readyLocked(); err != nil {
		w.mu.Unlock()
		return Snapshot{}, err
	}
	if text == "" {
		w.mu.Unlock()
		return Snapshot{}, ErrEmptyMessage
	}
	w.messages = append(w.messages, Message{Text: text, Sender: SenderUser})
	w.phase = phaseAwaiting
	w.mu.Unlock()

	var reply *backend.ChatReply
	err := w.locker.WithConversationLock(ctx, w.conversationID, func(ctx context.Context) error {
		var err error
		reply, err = w.responder.ChatText(ctx, w.conversationID, text)
		return err
	})

	return w.settle(reply, err, "text", MsgTextFailed)
}

// StartRecording acquires a capture. Failing to get one is reported in the
// transcript and leaves the widget idle.
func (w *Widget) StartRecording() (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.readyLocked(); err != nil {
		return Snapshot{}, err
	}

	capture, err := w.device.Open()
	if err != nil {
		w.logger.Warn().Err(err).Str("conversation_id", w.conversationID).Msg("open capture")
		w.messages = append(w.messages, Message{Text: MsgNoMic, Sender: SenderBot, IsError: true})
		return w.snapshotLocked(), nil
	}
	w.capture = capture
	w.phase = phaseRecording
	return w.snapshotLocked(), nil
}

// MicUnavailable records that the browser refused microphone access.
func (w *Widget) MicUnavailable() (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.readyLocked(); err != nil {
		return Snapshot{}, err
	}
	w.messages = append(w.messages, Message{Text: MsgNoMic, Sender: SenderBot, IsError: true})
	return w.snapshotLocked(), nil
}

// AppendAudio adds recorded bytes to the capture in progress.
func (w *Widget) AppendAudio(chunk []byte) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return Snapshot{}, ErrDisposed
	}
	if w.phase != phaseRecording || w.capture == nil {
		return Snapshot{}, ErrNotRecording
	}

	if _, err := w.capture.Write(chunk); err != nil {
		w.releaseCaptureLocked()
		w.phase = phaseIdle
		w.messages = append(w.messages, Message{Text: MsgAudioFailed, Sender: SenderBot, IsError: true})
		return w.snapshotLocked(), err
	}
	return w.snapshotLocked(), nil
}

// StopRecording releases the capture and sends what it recorded.
func (w *Widget) StopRecording(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return Snapshot{}, ErrDisposed
	}
	if w.phase != phaseRecording || w.capture == nil {
		w.mu.Unlock()
		return Snapshot{}, ErrNotRecording
	}
	audio := w.capture.Finish()
	w.capture = nil

	if len(audio.Data) == 0 {
		w.phase = phaseIdle
		w.messages = append(w.messages, Message{Text: MsgAudioFailed, Sender: SenderBot, IsError: true})
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, nil
	}
	w.phase = phaseAwaiting
	w.mu.Unlock()

	var reply *backend.ChatReply
	err := w.locker.WithConversationLock(ctx, w.conversationID, func(ctx context.Context) error {
		var err error
		reply, err = w.responder.ChatAudio(ctx, w.conversationID, audio)
		return err
	})

	return w.settle(reply, err, "audio", MsgAudioFailed)
}

// settle records the outcome of a round trip unless the widget was torn
// down while it was in flight.
func (w *Widget) settle(reply *backend.ChatReply, err error, kind, failure string) (Snapshot, error) {
	outcome := "ok"
	msg := Message{Sender: SenderBot}

	switch {
	case err == nil && reply != nil:
		msg.Text = reply.Response
	case backend.KindOf(err) == backend.KindValidation && backend.MessageOf(err) != "":
		// backend answered with success:false
		outcome = string(backend.KindValidation)
		msg.Text, msg.IsError = backend.MessageOf(err), true
	case err == nil:
		outcome = string(backend.KindMalformed)
		msg.Text, msg.IsError = MsgNoResponse, true
	default:
		outcome = string(backend.KindOf(err))
		msg.Text, msg.IsError = failure, true
	}
	if err != nil {
		w.logger.Warn().Err(err).Str("conversation_id", w.conversationID).Str("kind", kind).Msg("chat round trip failed")
	}
	w.metrics.ObserveChatMessage(kind, outcome)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return Snapshot{}, ErrDisposed
	}
	w.messages = append(w.messages, msg)
	w.phase = phaseIdle
	return w.snapshotLocked(), nil
}

// Teardown disposes the widget and releases any capture it holds.
func (w *Widget) Teardown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return
	}
	w.disposed = true
	w.releaseCaptureLocked()
	w.open = false
	w.phase = phaseIdle
}

func (w *Widget) readyLocked() error {
	switch {
	case w.disposed:
		return ErrDisposed
	case !w.open:
		return ErrClosed
	case w.phase != phaseIdle:
		return ErrBusy
	}
	return nil
}

func (w *Widget) releaseCaptureLocked() {
	if w.capture != nil {
		w.capture.Release()
		w.capture = nil
	}
}
