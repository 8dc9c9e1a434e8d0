package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/backend"
)

type Audience string

const (
	AudienceAdmin   Audience = "admin"
	AudiencePatient Audience = "patient"
)

type RenderMode string

const (
	RenderTable RenderMode = "table"
	RenderCards RenderMode = "cards"
)

// Listing is one appointments screen: whose appointments it shows and
// how they are laid out.
type Listing struct {
	Audience Audience
	Mode     RenderMode
	Title    string
	Path     string
}

var (
	AdminListing   = Listing{Audience: AudienceAdmin, Mode: RenderTable, Title: "Appointments", Path: "/admin/appointments"}
	PatientListing = Listing{Audience: AudiencePatient, Mode: RenderCards, Title: "My Appointments", Path: "/appointments"}
	HomeListing    = Listing{Audience: AudiencePatient, Mode: RenderCards, Title: "Your Appointments", Path: "/home"}
)

// View is what a listing screen renders.
type View struct {
	Listing
	Appointments []Appointment
	Error        string
	Notice       string
	Loaded       bool
}

func (v View) Empty() bool { return v.Loaded && len(v.Appointments) == 0 }

func (v View) Contains(id string) bool {
	for _, a := range v.Appointments {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) list(ctx context.Context, l Listing, patient Patient) ([]Appointment, error) {
	var (
		records []backend.AppointmentRecord
		err     error
	)
	if l.Audience == AudienceAdmin {
		records, err = s.backend.ListAllAppointments(ctx)
	} else {
		records, err = s.backend.ListAppointments(ctx, patient.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	appts := make([]Appointment, 0, len(records))
	for _, r := range records {
		appts = append(appts, fromRecord(r))
	}
	return appts, nil
}

// Load fetches the listing. Failures are reported in the view.
func (s *Service) Load(ctx context.Context, l Listing, patient Patient) View {
	view := View{Listing: l}
	appts, err := s.list(ctx, l, patient)
	if err != nil {
		s.logger.Warn().Err(err).Str("audience", string(l.Audience)).Msg("load appointments")
		view.Error = MsgLoadFailed
		return view
	}
	view.Appointments = appts
	view.Loaded = true
	return view
}

// Cancel deletes id and returns the listing to render next. The
// appointment leaves the list only once the backend confirms; on failure
// it stays and the view carries the error.
func (s *Service) Cancel(ctx context.Context, l Listing, patient Patient, id string) View {
	view := s.Load(ctx, l, patient)
	if !view.Loaded {
		return view
	}

	if err := s.cancel(ctx, view, patient, id); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", id).Msg("cancel appointment")
		if errors.Is(err, ErrNotOwned) {
			view.Error = MsgNotYours
		} else {
			view.Error = MsgCancelFailed
		}
		return view
	}

	kept := view.Appointments[:0]
	for _, a := range view.Appointments {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	view.Appointments = kept
	view.Notice = MsgCancelled
	return view
}

func (s *Service) cancel(ctx context.Context, view View, patient Patient, id string) error {
	// patients only see their own appointments, so anything else is not theirs
	if view.Audience == AudiencePatient && !view.Contains(id) {
		return ErrNotOwned
	}
	if err := s.backend.CancelAppointment(ctx, id); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Type:    audit.EventAppointmentCancelled,
		Subject: id,
		Actor:   patient.Email,
		Payload: map[string]any{"audience": string(view.Audience)},
	})
	return nil
}
