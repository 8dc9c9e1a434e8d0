package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/doctor"
)

const dateLayout = "2006-01-02"

const (
	MsgBooked        = "Appointment booked successfully!"
	MsgMissingFields = "Please fill in the date, time and reason for your visit."
	MsgPastDate      = "Please choose today or a later date."
	MsgDoctorGone    = "That doctor is no longer available."
	MsgSlotTaken     = "That slot is already booked. Please pick another time."
	MsgUnreachable   = "Could not reach the booking service. Please try again."
	MsgServerError   = "The booking service had a problem. Please try again."
	MsgBookingFailed = "Failed to book appointment. Please try again."
	MsgLoadFailed    = "Failed to load appointments. Please try again later."
	MsgCancelFailed  = "Failed to cancel appointment. Please try again."
	MsgNotYours      = "That appointment is not in your list."
	MsgCancelled     = "Appointment cancelled."
)

var (
	ErrInvalidBooking = errors.New("invalid booking request")
	ErrPastDate       = errors.New("appointment date is in the past")
	ErrNotOwned       = errors.New("appointment does not belong to patient")
)

var (
	decoder  = newDecoder()
	validate = validator.New()
)

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type Service struct {
	backend Backend
	doctors Doctors
	audit   audit.Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(b Backend, doctors Doctors, rec audit.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = audit.Nop()
	}
	return &Service{
		backend: b,
		doctors: doctors,
		audit:   rec,
		logger:  logger,
		now:     time.Now,
	}
}

// MinDate is the earliest date the booking form accepts.
func (s *Service) MinDate() string {
	return s.now().Format(dateLayout)
}

func ParseBookingRequest(values url.Values) (BookingRequest, error) {
	var req BookingRequest
	if err := decoder.Decode(&req, values); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	req.Issue = strings.TrimSpace(req.Issue)
	return req, nil
}

// Book creates an appointment for patient. The backend alone decides
// whether the slot is free.
func (s *Service) Book(ctx context.Context, req BookingRequest, patient Patient) (Appointment, error) {
	if err := validate.Struct(req); err != nil {
		return Appointment{}, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	if req.Date < s.MinDate() {
		return Appointment{}, ErrPastDate
	}

	doc, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		return Appointment{}, fmt.Errorf("load doctor: %w", err)
	}

	name := patient.Name
	if name == "" {
		name = patient.Email
	}

	appt := Appointment{
		PatientEmail:     patient.Email,
		PatientName:      name,
		DoctorID:         doc.ID,
		DoctorName:       doc.Name,
		DoctorSpeciality: doc.Speciality,
		DoctorHospital:   doc.Hospital,
		Date:             req.Date,
		Time:             req.Time,
		Issue:            req.Issue,
	}

	id, err := s.backend.CreateAppointment(ctx, appt.Record())
	if err != nil {
		s.logger.Info().Err(err).Str("doctor_id", doc.ID).Str("date", req.Date).Str("time", req.Time).
			Str("kind", string(backend.KindOf(err))).Msg("booking rejected")
		return Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	appt.ID = id

	s.audit.Record(ctx, audit.Event{
		Type:    audit.EventAppointmentBooked,
		Subject: id,
		Actor:   patient.Email,
		Payload: map[string]any{
			"doctor_id": doc.ID,
			"date":      appt.Date,
			"time":      appt.Time,
		},
	})
	return appt, nil
}

// BookingFailureMessage words a failed booking by its cause.
func BookingFailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidBooking):
		return MsgMissingFields
	case errors.Is(err, ErrPastDate):
		return MsgPastDate
	case errors.Is(err, doctor.ErrNotFound):
		return MsgDoctorGone
	}

	switch backend.KindOf(err) {
	case backend.KindConflict:
		return MsgSlotTaken
	case backend.KindValidation:
		if msg := backend.MessageOf(err); msg != "" {
			return msg
		}
		return MsgMissingFields
	case backend.KindNotFound:
		return MsgDoctorGone
	case backend.KindTransport:
		return MsgUnreachable
	case backend.KindServer:
		return MsgServerError
	}
	return MsgBookingFailed
}

// AvailableSlots returns the free start times of a doctor on date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	if doctorID == "" {
		return nil, ErrInvalidBooking
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	slots, err := s.backend.AvailableSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("available slots: %w", err)
	}
	return slots, nil
}
