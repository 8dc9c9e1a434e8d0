package appointment

import (
	"context"

	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/doctor"
)

// Backend contains all booking backend calls needed by the service.
type Backend interface {
	ListAppointments(ctx context.Context, patientEmail string) ([]backend.AppointmentRecord, error)
	ListAllAppointments(ctx context.Context) ([]backend.AppointmentRecord, error)

	CreateAppointment(ctx context.Context, a backend.AppointmentRecord) (string, error)
	CancelAppointment(ctx context.Context, id string) error

	// Free hourly start times for the booking modal
	AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error)
}

// Doctors resolves the doctor being booked so its details can be copied
// onto the appointment.
type Doctors interface {
	Get(ctx context.Context, id string) (doctor.Doctor, error)
}
