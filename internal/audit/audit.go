package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventUserRegistered       = "USER_REGISTERED"
	EventDoctorAdded          = "DOCTOR_ADDED"
	EventDoctorDeleted        = "DOCTOR_DELETED"
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// Event is one user action worth keeping after the request is gone.
type Event struct {
	Type      string
	Subject   string // id of the doctor/appointment/user acted on
	Actor     string // email of the logged in user
	Payload   map[string]any
	CreatedAt time.Time
}

// Recorder stores events. Implementations log their own failures; callers
// never see them.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// LogRecorder writes events to the process log. Used when no database is configured.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) {
	r.logger.Info().
		Str("event_type", ev.Type).
		Str("subject", ev.Subject).
		Str("actor", ev.Actor).
		Interface("payload", ev.Payload).
		Msg("audit event")
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) {}

// Nop discards every event.
func Nop() Recorder { return nopRecorder{} }
