package web

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/session"
)

const (
	msgUnreachable    = "Could not reach the booking service. Please try again."
	msgLoginFailed    = "Login failed. Please try again."
	msgRegisterFailed = "Registration failed. Please try again."
	msgNotAdmin       = "This account does not have admin access."
	msgRegistered     = "Registration successful! Please log in."
	msgSessionFailed  = "Could not start your session. Please try again."
	msgCheckForm      = "Please check the form and try again."
)

// AuthBackend is the part of the booking backend that verifies users.
type AuthBackend interface {
	Register(ctx context.Context, req backend.RegisterRequest) error
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
}

type loginPage struct {
	Heading string
	Action  string
	Admin   bool
	Email   string
	Errors  FieldErrors
}

type registerPage struct {
	Username string
	Email    string
	Errors   FieldErrors
}

// homeFor is where a user lands after logging in.
func homeFor(role session.Role) string {
	if role == session.RoleAdmin {
		return "/admin"
	}
	return "/panel"
}

func landingHandler(rn *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if u, ok := session.FromContext(r.Context()).User(); ok {
			http.Redirect(w, r, homeFor(u.Role), http.StatusSeeOther)
			return
		}
		rn.Render(w, r, http.StatusOK, "landing", Page{Title: "Welcome"})
	}
}

func patientLoginPage(email string, errs FieldErrors) loginPage {
	return loginPage{Heading: "Patient Login", Action: "/login", Email: email, Errors: errs}
}

func adminLoginPage(email string, errs FieldErrors) loginPage {
	return loginPage{Heading: "Admin Login", Action: "/admin/login", Admin: true, Email: email, Errors: errs}
}

func loginFormHandler(rn *Renderer, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if u, ok := session.FromContext(r.Context()).User(); ok && (!admin || u.Role == session.RoleAdmin) {
			http.Redirect(w, r, homeFor(u.Role), http.StatusSeeOther)
			return
		}

		p := Page{Title: "Login", Data: patientLoginPage("", nil)}
		if admin {
			p = Page{Title: "Admin Login", Data: adminLoginPage("", nil)}
		}
		if r.URL.Query().Get("registered") != "" {
			p.Flash = msgRegistered
		}
		rn.Render(w, r, http.StatusOK, "login", p)
	}
}

// loginHandler verifies the credentials with the backend and starts a
// session. The admin form only admits users the backend reports as admins.
func loginHandler(rn *Renderer, auth AuthBackend, sessions *session.Manager, logger zerolog.Logger, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "could not parse form")
			return
		}

		var (
			email string
			errs  FieldErrors
			pass  string
		)
		if admin {
			var form AdminLoginForm
			errs = decodeForm(&form, r.PostForm)
			email, pass = form.Email, form.Password
		} else {
			var form LoginForm
			errs = decodeForm(&form, r.PostForm)
			email, pass = form.Email, form.Password
		}

		render := func(status int, errs FieldErrors) {
			p := Page{Title: "Login", Data: patientLoginPage(email, errs)}
			if admin {
				p = Page{Title: "Admin Login", Data: adminLoginPage(email, errs)}
			}
			rn.Render(w, r, status, "login", p)
		}

		if errs != nil {
			render(http.StatusBadRequest, errs)
			return
		}

		res, err := auth.Login(r.Context(), email, pass)
		if err != nil {
			logger.Info().Err(err).Str("kind", string(backend.KindOf(err))).Bool("admin", admin).Msg("login rejected")
			render(statusForBackendError(err), FieldErrors{"general": authFailureMessage(err, msgLoginFailed)})
			return
		}

		user := session.User{
			Email:    res.Email,
			Username: res.Username,
			Role:     session.ParseRole(res.Role),
			Token:    res.Token,
		}
		if admin && user.Role != session.RoleAdmin {
			render(http.StatusForbidden, FieldErrors{"general": msgNotAdmin})
			return
		}

		if _, err := sessions.Login(w, r, user); err != nil {
			logger.Error().Err(err).Msg("start session")
			render(http.StatusInternalServerError, FieldErrors{"general": msgSessionFailed})
			return
		}
		http.Redirect(w, r, homeFor(user.Role), http.StatusSeeOther)
	}
}

func registerFormHandler(rn *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rn.Render(w, r, http.StatusOK, "register", Page{Title: "Register", Data: registerPage{}})
	}
}

func registerHandler(rn *Renderer, auth AuthBackend, rec audit.Recorder, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "could not parse form")
			return
		}

		var form RegisterForm
		errs := decodeForm(&form, r.PostForm)
		render := func(status int, errs FieldErrors) {
			rn.Render(w, r, status, "register", Page{
				Title: "Register",
				Data:  registerPage{Username: form.Username, Email: form.Email, Errors: errs},
			})
		}
		if errs != nil {
			render(http.StatusBadRequest, errs)
			return
		}

		err := auth.Register(r.Context(), backend.RegisterRequest{
			Username: form.Username,
			Email:    form.Email,
			Password: form.Password,
			Role:     string(session.RoleUser),
		})
		if err != nil {
			logger.Info().Err(err).Str("kind", string(backend.KindOf(err))).Msg("registration rejected")
			render(statusForBackendError(err), FieldErrors{"general": authFailureMessage(err, msgRegisterFailed)})
			return
		}

		rec.Record(r.Context(), audit.Event{
			Type:    audit.EventUserRegistered,
			Subject: form.Email,
			Actor:   form.Email,
			Payload: map[string]any{"username": form.Username},
		})
		http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
	}
}

func logoutHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Logout(w, r)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func authFailureMessage(err error, fallback string) string {
	if msg := backend.MessageOf(err); msg != "" {
		return msg
	}
	if backend.KindOf(err) == backend.KindTransport {
		return msgUnreachable
	}
	return fallback
}

// statusForBackendError picks the status of a page that renders a failed
// backend call inline.
func statusForBackendError(err error) int {
	switch backend.KindOf(err) {
	case backend.KindValidation:
		return http.StatusBadRequest
	case backend.KindConflict:
		return http.StatusConflict
	case backend.KindNotFound:
		return http.StatusNotFound
	case backend.KindUnauthorized:
		return http.StatusUnauthorized
	case backend.KindTransport, backend.KindServer, backend.KindMalformed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
