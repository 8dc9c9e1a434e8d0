package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/spark200410/consultancy/internal/chat"
	"github.com/spark200410/consultancy/internal/session"
)

// maxChatBody caps the JSON bodies of the chat endpoints.
const maxChatBody = 16 << 10

type ChatMessageRequest struct {
	Text string `json:"text"`
}

type StartRecordingRequest struct {
	MicDenied bool `json:"micDenied"`
}

func widgetFor(reg *chat.Registry, r *http.Request) *chat.Widget {
	return reg.Widget(session.SessionIDFromContext(r.Context()))
}

func chatSnapshotHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, widgetFor(reg, r).Snapshot())
	}
}

func chatToggleHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := widgetFor(reg, r).Toggle()
		writeChat(w, snap, err)
	}
}

func chatMessageHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatMessageRequest
		if err := decodeChatBody(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		snap, err := widgetFor(reg, r).SendText(r.Context(), req.Text)
		writeChat(w, snap, err)
	}
}

func chatStartRecordingHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRecordingRequest
		if err := decodeChatBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeBodyError(w, err)
			return
		}

		widget := widgetFor(reg, r)
		var (
			snap chat.Snapshot
			err  error
		)
		if req.MicDenied {
			snap, err = widget.MicUnavailable()
		} else {
			snap, err = widget.StartRecording()
		}
		writeChat(w, snap, err)
	}
}

func decodeChatBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(v)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, "message_too_large", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
}

// chatChunkHandler appends the raw request body to the recording.
func chatChunkHandler(reg *chat.Registry, maxAudio int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudio))
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				err = chat.ErrCaptureTooLarge
			}
			writeChat(w, chat.Snapshot{}, err)
			return
		}
		snap, err := widgetFor(reg, r).AppendAudio(body)
		writeChat(w, snap, err)
	}
}

func chatStopRecordingHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := widgetFor(reg, r).StopRecording(r.Context())
		writeChat(w, snap, err)
	}
}

// writeChat answers with the widget snapshot. Errors that still leave a
// snapshot to show send it with the error status so the browser can
// redraw the transcript.
func writeChat(w http.ResponseWriter, snap chat.Snapshot, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if snap.State != "" {
		writeJSON(w, chatErrorStatus(err), snap)
		return
	}
	handleChatError(w, err)
}

func chatErrorStatus(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrClosed), errors.Is(err, chat.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, chat.ErrDisposed):
		return http.StatusGone
	case errors.Is(err, chat.ErrCaptureTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func handleChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, "chat_busy", err.Error())
	case errors.Is(err, chat.ErrClosed):
		writeError(w, http.StatusConflict, "chat_closed", err.Error())
	case errors.Is(err, chat.ErrNotRecording):
		writeError(w, http.StatusConflict, "not_recording", err.Error())
	case errors.Is(err, chat.ErrDisposed):
		writeError(w, http.StatusGone, "chat_disposed", err.Error())
	case errors.Is(err, chat.ErrCaptureTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "audio_too_large", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
