package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Execer is the slice of pgxpool.Pool the recorder needs.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PgRecorder struct {
	db     Execer
	logger zerolog.Logger
	now    func() time.Time
}

func NewPgRecorder(db Execer, logger zerolog.Logger) *PgRecorder {
	return &PgRecorder{db: db, logger: logger, now: time.Now}
}

func (r *PgRecorder) Record(ctx context.Context, ev Event) {
	var payload []byte
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			r.logger.Warn().Err(err).Str("event_type", ev.Type).Msg("marshal audit payload")
		} else {
			payload = data
		}
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, subject, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.Type, ev.Subject, ev.Actor, payload, createdAt)
	if err != nil {
		r.logger.Error().Err(err).
			Str("event_type", ev.Type).
			Str("subject", ev.Subject).
			Msg("insert audit event")
	}
}
