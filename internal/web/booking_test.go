package web

import (
	"html"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spark200410/consultancy/internal/appointment"
	"github.com/spark200410/consultancy/internal/backend"
)

func patientPortal(t *testing.T, fb *fakeBooking) *testPortal {
	t.Helper()
	p := newTestPortal(t, fb)
	p.login("alice@example.com", "secret1", false)
	return p
}

func bookingForm(date string) url.Values {
	return url.Values{
		"doctorId": {"d1"},
		"date":     {date},
		"time":     {"10:00"},
		"issue":    {"Chest pain"},
	}
}

func TestBookingModalCarriesMinDate(t *testing.T) {
	fb := newFakeBooking()
	fb.addDoctor("d1", "Dr. Asha Rao")
	p := patientPortal(t, fb)

	resp, body := p.get("/book")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `href="/book?doctor=d1"`)
	assert.NotContains(t, body, "modal-backdrop")

	resp, body = p.get("/book?doctor=d1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "modal-backdrop")
	assert.Contains(t, body, `min="`+time.Now().Format("2006-01-02")+`"`)
}

func TestBookingModalListsSlotsForDate(t *testing.T) {
	fb := newFakeBooking()
	fb.addDoctor("d1", "Dr. Asha Rao")
	p := patientPortal(t, fb)

	_, body := p.get("/book?doctor=d1&date=2099-01-01")
	assert.Contains(t, body, `<option value="09:00">`)
	assert.Contains(t, body, "Available: 09:00, 10:00, 11:00")
}

func TestBookingUnknownDoctor(t *testing.T) {
	fb := newFakeBooking()
	p := patientPortal(t, fb)

	resp, body := p.get("/book?doctor=gone")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, appointment.MsgDoctorGone)
}

func TestBookAppointment(t *testing.T) {
	fb := newFakeBooking()
	fb.addDoctor("d1", "Dr. Asha Rao")
	p := patientPortal(t, fb)

	resp, _ := p.postForm("/book", bookingForm("2099-01-01"))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/book?booked=1", resp.Header.Get("Location"))

	require.Len(t, fb.appointments, 1)
	got := fb.appointments[0]
	assert.Equal(t, "alice@example.com", got.PatientEmail)
	assert.Equal(t, "alice", got.PatientName)
	assert.Equal(t, "Dr. Asha Rao", got.DoctorName)
	assert.Equal(t, "Cardiology", got.DoctorSpeciality)
	assert.Equal(t, "City Hospital", got.DoctorHospital)

	_, body := p.get("/book?booked=1")
	assert.Contains(t, body, appointment.MsgBooked)
	assert.NotContains(t, body, "modal-backdrop")
}

func TestBookAppointmentFailures(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		bookErr error
		status  int
		want    string
	}{
		{"past date", "2000-01-01", nil, http.StatusBadRequest, appointment.MsgPastDate},
		{"missing date", "", nil, http.StatusBadRequest, appointment.MsgMissingFields},
		{
			name:    "slot taken",
			date:    "2099-01-01",
			bookErr: &backend.APIError{Status: 400, Kind: backend.KindConflict, Message: "Slot already booked"},
			status:  http.StatusConflict,
			want:    appointment.MsgSlotTaken,
		},
		{"backend down", "2099-01-01", backend.ErrTransport, http.StatusBadGateway, appointment.MsgUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBooking()
			fb.addDoctor("d1", "Dr. Asha Rao")
			fb.bookErr = tt.bookErr
			p := patientPortal(t, fb)

			resp, body := p.postForm("/book", bookingForm(tt.date))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body, html.EscapeString(tt.want))
			assert.Contains(t, body, "modal-backdrop", "modal stays open")
			assert.Contains(t, body, "Chest pain")
			assert.Empty(t, fb.appointments)
		})
	}
}

func TestPatientListingShowsOnlyOwnAppointments(t *testing.T) {
	fb := newFakeBooking()
	fb.addAppointment("a1", "alice@example.com", "Dr. Asha Rao")
	fb.addAppointment("b1", "bob@example.com", "Dr. Ben Okafor")
	p := patientPortal(t, fb)

	for _, path := range []string{"/appointments", "/home"} {
		resp, body := p.get(path)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Dr. Asha Rao")
		assert.NotContains(t, body, "Dr. Ben Okafor")
		assert.NotContains(t, body, "<table")
	}

	_, body := p.get("/appointments")
	assert.Contains(t, body, "My Appointments")
	_, body = p.get("/home")
	assert.Contains(t, body, "Your Appointments")
}

func TestPatientCancel(t *testing.T) {
	fb := newFakeBooking()
	fb.addAppointment("a1", "alice@example.com", "Dr. Asha Rao")
	fb.addAppointment("b1", "bob@example.com", "Dr. Ben Okafor")
	p := patientPortal(t, fb)

	resp, body := p.postForm("/appointments/cancel", url.Values{"id": {"b1"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, appointment.MsgNotYours)
	assert.Len(t, fb.appointments, 2)

	resp, body = p.postForm("/appointments/cancel", url.Values{"id": {"a1"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, appointment.MsgCancelled)
	assert.Contains(t, body, "No appointments found.")
	assert.Len(t, fb.appointments, 1)
}

func TestCancelFailureKeepsAppointment(t *testing.T) {
	fb := newFakeBooking()
	fb.addAppointment("a1", "alice@example.com", "Dr. Asha Rao")
	fb.cancelErr = backend.ErrTransport
	p := patientPortal(t, fb)

	resp, body := p.postForm("/appointments/cancel", url.Values{"id": {"a1"}})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, appointment.MsgCancelFailed)
	assert.Contains(t, body, "Dr. Asha Rao")
}

func TestAdminListingIsATableOfEveryone(t *testing.T) {
	fb := newFakeBooking()
	fb.addAppointment("a1", "alice@example.com", "Dr. Asha Rao")
	fb.addAppointment("b1", "bob@example.com", "Dr. Ben Okafor")
	p := adminPortal(t, fb)

	resp, body := p.get("/admin/appointments")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<table")
	assert.Contains(t, body, "Dr. Asha Rao")
	assert.Contains(t, body, "Dr. Ben Okafor")

	resp, _ = p.postForm("/admin/appointments/cancel", url.Values{"id": {"b1"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, fb.appointments, 1)
}

func TestEmptyListing(t *testing.T) {
	p := patientPortal(t, newFakeBooking())

	_, body := p.get("/appointments")
	assert.Contains(t, body, "No appointments found.")
}
