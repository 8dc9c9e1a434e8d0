package appointment

import (
	"github.com/spark200410/consultancy/internal/backend"
)

// Appointment carries the doctor's name, speciality and hospital copied at
// booking time so listings can render without looking the doctor up.
type Appointment struct {
	ID               string
	PatientEmail     string
	PatientName      string
	DoctorID         string
	DoctorName       string
	DoctorSpeciality string
	DoctorHospital   string
	Date             string
	Time             string
	Issue            string
}

func fromRecord(r backend.AppointmentRecord) Appointment {
	return Appointment{
		ID:               r.ID,
		PatientEmail:     r.PatientEmail,
		PatientName:      r.PatientName,
		DoctorID:         r.DoctorID,
		DoctorName:       r.DoctorName,
		DoctorSpeciality: r.DoctorSpeciality,
		DoctorHospital:   r.DoctorHospital,
		Date:             r.Date,
		Time:             r.Time,
		Issue:            r.Issue,
	}
}

func (a Appointment) Record() backend.AppointmentRecord {
	return backend.AppointmentRecord{
		ID:               a.ID,
		PatientEmail:     a.PatientEmail,
		PatientName:      a.PatientName,
		DoctorID:         a.DoctorID,
		DoctorName:       a.DoctorName,
		DoctorSpeciality: a.DoctorSpeciality,
		DoctorHospital:   a.DoctorHospital,
		Date:             a.Date,
		Time:             a.Time,
		Issue:            a.Issue,
	}
}

// Patient is who an appointment is booked for.
type Patient struct {
	Email string
	Name  string // username, or the email when there is none
}

// BookingRequest is the booking modal's form.
type BookingRequest struct {
	DoctorID string `schema:"doctorId" validate:"required"`
	Date     string `schema:"date" validate:"required,datetime=2006-01-02"`
	Time     string `schema:"time" validate:"required,datetime=15:04"`
	Issue    string `schema:"issue" validate:"required"`
}
