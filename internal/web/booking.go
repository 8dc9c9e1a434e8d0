package web

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/appointment"
	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/session"
)

const msgSlotsUnavailable = "Could not load available times for this date."

type bookPage struct {
	Doctors    []doctor.Doctor
	Loaded     bool
	Selected   *doctor.Doctor
	MinDate    string
	Date       string
	Time       string
	Issue      string
	Slots      []string
	SlotsError string
	ModalError string
}

func (p bookPage) Empty() bool { return p.Loaded && len(p.Doctors) == 0 }

func patientFrom(r *http.Request) appointment.Patient {
	u, _ := session.FromContext(r.Context()).User()
	return appointment.Patient{Email: u.Email, Name: u.Username}
}

func panelHandler(rn *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn.Render(w, r, http.StatusOK, "panel", Page{Title: "User Dashboard", Shell: shellUser})
	}
}

// bookingPageHandler renders the doctor cards and, with ?doctor=<id>, the
// booking modal for that doctor. Picking a date adds that day's free slots.
func bookingPageHandler(rn *Renderer, dir *doctor.Directory, svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := Page{Title: "Book Appointment", Shell: shellUser}
		if q.Get("booked") != "" {
			p.Flash = appointment.MsgBooked
		}

		data := bookPage{
			MinDate: svc.MinDate(),
			Date:    q.Get("date"),
			Issue:   q.Get("issue"),
		}
		status := loadBookingPage(r, dir, svc, logger, &p, &data, q.Get("doctor"))
		p.Data = data
		rn.Render(w, r, status, "book", p)
	}
}

// bookHandler submits the modal. Success closes it by redirecting back to
// the cards with a flash; failure re-renders it with the reason.
func bookHandler(rn *Renderer, dir *doctor.Directory, svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "could not parse form")
			return
		}

		req, err := appointment.ParseBookingRequest(r.PostForm)
		if err == nil {
			_, err = svc.Book(r.Context(), req, patientFrom(r))
		}
		if err == nil {
			http.Redirect(w, r, "/book?booked=1", http.StatusSeeOther)
			return
		}

		p := Page{Title: "Book Appointment", Shell: shellUser}
		data := bookPage{
			MinDate:    svc.MinDate(),
			Date:       req.Date,
			Time:       req.Time,
			Issue:      req.Issue,
			ModalError: appointment.BookingFailureMessage(err),
		}
		loadBookingPage(r, dir, svc, logger, &p, &data, req.DoctorID)
		p.Data = data
		rn.Render(w, r, bookingFailureStatus(err), "book", p)
	}
}

func loadBookingPage(r *http.Request, dir *doctor.Directory, svc *appointment.Service, logger zerolog.Logger, p *Page, data *bookPage, doctorID string) int {
	doctors, err := dir.List(r.Context())
	if err != nil {
		logger.Warn().Err(err).Msg("list doctors")
		p.Error = doctor.LoadFailureMessage(err)
		return statusForBackendError(err)
	}
	data.Doctors, data.Loaded = doctors, true

	if doctorID == "" {
		return http.StatusOK
	}
	for i := range doctors {
		if doctors[i].ID == doctorID {
			data.Selected = &doctors[i]
			break
		}
	}
	if data.Selected == nil {
		p.Error = appointment.MsgDoctorGone
		return http.StatusNotFound
	}

	if data.Date != "" {
		slots, err := svc.AvailableSlots(r.Context(), doctorID, data.Date)
		if err != nil {
			logger.Info().Err(err).Str("doctor_id", doctorID).Str("date", data.Date).Msg("load available slots")
			data.SlotsError = msgSlotsUnavailable
		} else {
			data.Slots = slots
		}
	}
	return http.StatusOK
}

func bookingFailureStatus(err error) int {
	switch {
	case errors.Is(err, appointment.ErrInvalidBooking), errors.Is(err, appointment.ErrPastDate):
		return http.StatusBadRequest
	case errors.Is(err, doctor.ErrNotFound):
		return http.StatusNotFound
	}
	return statusForBackendError(err)
}

func listingHandler(rn *Renderer, svc *appointment.Service, l appointment.Listing, shell string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := svc.Load(r.Context(), l, patientFrom(r))
		renderListing(w, r, rn, view, shell)
	}
}

// cancelHandler deletes the appointment named by the id form field and
// renders the listing as the backend now reports it.
func cancelHandler(rn *Renderer, svc *appointment.Service, l appointment.Listing, shell string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PostFormValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id is required")
			return
		}
		view := svc.Cancel(r.Context(), l, patientFrom(r), id)
		renderListing(w, r, rn, view, shell)
	}
}

func renderListing(w http.ResponseWriter, r *http.Request, rn *Renderer, view appointment.View, shell string) {
	status := http.StatusOK
	switch {
	case !view.Loaded:
		status = http.StatusBadGateway
	case view.Error == appointment.MsgNotYours:
		status = http.StatusForbidden
	case view.Error != "":
		status = http.StatusBadGateway
	}
	rn.Render(w, r, status, "appointments", Page{Title: view.Title, Shell: shell, Data: view})
}
