package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRecorderInsertsEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentBooked, "a1", "alice@example.com", []byte(`{"doctorId":"d1"}`), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := NewPgRecorder(mock, zerolog.Nop())
	rec.Record(context.Background(), Event{
		Type:      EventAppointmentBooked,
		Subject:   "a1",
		Actor:     "alice@example.com",
		Payload:   map[string]any{"doctorId": "d1"},
		CreatedAt: at,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRecorderDefaultsTimestampAndNilPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventDoctorDeleted, "D4", "admin@example.com", []byte(nil), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := NewPgRecorder(mock, zerolog.Nop())
	rec.now = func() time.Time { return at }
	rec.Record(context.Background(), Event{Type: EventDoctorDeleted, Subject: "D4", Actor: "admin@example.com"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRecorderSwallowsErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	var buf bytes.Buffer
	rec := NewPgRecorder(mock, zerolog.New(&buf))
	rec.Record(context.Background(), Event{Type: EventDoctorAdded, Subject: "D1"})

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "insert audit event")
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	NewLogRecorder(zerolog.New(&buf)).Record(context.Background(), Event{Type: EventUserRegistered, Subject: "bob@example.com"})

	assert.Contains(t, buf.String(), EventUserRegistered)
	assert.Contains(t, buf.String(), "bob@example.com")
}
