package web

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/session"
)

const (
	msgDoctorDeleted  = "Doctor deleted."
	msgDoctorNotFound = "Doctor not found"
	msgPhotoTooLarge  = "Profile photo is too large."
	msgPhotoNotImage  = "Profile photo must be an image."
)

type addDoctorPage struct {
	Form doctor.AddForm
}

type doctorsPage struct {
	Doctors []doctor.Doctor
	Loaded  bool
}

func (p doctorsPage) Empty() bool { return p.Loaded && len(p.Doctors) == 0 }

type deleteDoctorPage struct {
	Doctor *doctor.Doctor
}

func addDoctorFormHandler(rn *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn.Render(w, r, http.StatusOK, "add_doctor", Page{
			Title: "Add Doctor",
			Shell: shellAdmin,
			Data:  addDoctorPage{Form: doctor.EmptyAddForm()},
		})
	}
}

// addDoctorHandler takes the multipart add doctor form. On success the form
// comes back empty and the browser moves on to the list after delay.
func addDoctorHandler(rn *Renderer, dir *doctor.Directory, maxPhoto int64, delay time.Duration, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render := func(status int, form doctor.AddForm, p Page) {
			p.Title, p.Shell = "Add Doctor", shellAdmin
			p.Data = addDoctorPage{Form: form}
			rn.Render(w, r, status, "add_doctor", p)
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPhoto+1<<20)
		if err := r.ParseMultipartForm(maxPhoto); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				render(http.StatusRequestEntityTooLarge, doctor.EmptyAddForm(), Page{Error: msgPhotoTooLarge})
				return
			}
			render(http.StatusBadRequest, doctor.EmptyAddForm(), Page{Error: msgCheckForm})
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		form, err := doctor.ParseAddForm(r.MultipartForm.Value)
		if err != nil {
			render(http.StatusBadRequest, form, Page{Error: msgCheckForm})
			return
		}

		if msg, status := attachPhoto(r, &form, maxPhoto); msg != "" {
			render(status, form, Page{Error: msg})
			return
		}

		u, _ := session.FromContext(r.Context()).User()
		doc, err := dir.Add(r.Context(), form, u.Email)
		if err != nil {
			status := http.StatusBadRequest
			var fe *doctor.FormError
			if !errors.As(err, &fe) {
				status = statusForBackendError(err)
				logger.Warn().Err(err).Msg("add doctor")
			}
			render(status, form, Page{Error: doctor.AddFailureMessage(err)})
			return
		}

		logger.Info().Str("doctor_id", doc.ID).Str("actor", u.Email).Msg("doctor added")
		render(http.StatusOK, doctor.EmptyAddForm(), Page{
			Flash:   doctor.MsgAdded,
			Refresh: &Refresh{URL: "/admin/doctors", Delay: delay},
		})
	}
}

// attachPhoto reads the uploaded profile photo into the form. A missing
// file is left for form validation to report.
func attachPhoto(r *http.Request, form *doctor.AddForm, maxPhoto int64) (string, int) {
	file, _, err := r.FormFile("profilePhoto")
	if errors.Is(err, http.ErrMissingFile) {
		return "", 0
	}
	if err != nil {
		return msgCheckForm, http.StatusBadRequest
	}
	defer file.Close()

	dataURL, err := doctor.PhotoDataURL(file, maxPhoto)
	switch {
	case errors.Is(err, doctor.ErrPhotoTooLarge):
		return msgPhotoTooLarge, http.StatusRequestEntityTooLarge
	case errors.Is(err, doctor.ErrPhotoNotImage):
		return msgPhotoNotImage, http.StatusUnsupportedMediaType
	case err != nil:
		return msgCheckForm, http.StatusBadRequest
	}
	form.PhotoDataURL = dataURL
	return "", 0
}

func listDoctorsHandler(rn *Renderer, dir *doctor.Directory, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := Page{Title: "Doctors List", Shell: shellAdmin}
		if r.URL.Query().Get("deleted") != "" {
			p.Flash = msgDoctorDeleted
		}
		renderDoctors(w, r, rn, dir, logger, http.StatusOK, p)
	}
}

// renderDoctors always fetches the list fresh from the directory.
func renderDoctors(w http.ResponseWriter, r *http.Request, rn *Renderer, dir *doctor.Directory, logger zerolog.Logger, status int, p Page) {
	doctors, err := dir.List(r.Context())
	if err != nil {
		logger.Warn().Err(err).Msg("list doctors")
		if p.Error == "" {
			p.Error = doctor.LoadFailureMessage(err)
		}
		if status == http.StatusOK {
			status = statusForBackendError(err)
		}
		p.Data = doctorsPage{}
		rn.Render(w, r, status, "doctors", p)
		return
	}
	p.Data = doctorsPage{Doctors: doctors, Loaded: true}
	rn.Render(w, r, status, "doctors", p)
}

func confirmDeleteDoctorHandler(rn *Renderer, dir *doctor.Directory, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p := Page{Title: "Delete Doctor", Shell: shellAdmin}

		doc, err := dir.Get(r.Context(), id)
		if err != nil {
			status := http.StatusNotFound
			p.Error = msgDoctorNotFound
			if !errors.Is(err, doctor.ErrNotFound) {
				logger.Warn().Err(err).Str("doctor_id", id).Msg("load doctor")
				status = statusForBackendError(err)
				p.Error = doctor.LoadFailureMessage(err)
			}
			p.Data = deleteDoctorPage{}
			rn.Render(w, r, status, "doctor_delete", p)
			return
		}

		p.Data = deleteDoctorPage{Doctor: &doc}
		rn.Render(w, r, http.StatusOK, "doctor_delete", p)
	}
}

// deleteDoctorHandler deletes only with confirm=yes. The list shown
// afterwards is re-fetched, never patched locally.
func deleteDoctorHandler(rn *Renderer, dir *doctor.Directory, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if r.PostFormValue("confirm") != "yes" {
			http.Redirect(w, r, "/admin/doctors/"+url.PathEscape(id)+"/delete", http.StatusSeeOther)
			return
		}

		u, _ := session.FromContext(r.Context()).User()
		if err := dir.Delete(r.Context(), id, u.Email); err != nil {
			logger.Warn().Err(err).Str("doctor_id", id).Msg("delete doctor")
			renderDoctors(w, r, rn, dir, logger, statusForBackendError(err), Page{
				Title: "Doctors List",
				Shell: shellAdmin,
				Error: doctor.DeleteFailureMessage(err),
			})
			return
		}

		logger.Info().Str("doctor_id", id).Str("actor", u.Email).Msg("doctor deleted")
		http.Redirect(w, r, "/admin/doctors?deleted=1", http.StatusSeeOther)
	}
}
