package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/spark200410/consultancy/internal/appointment"
	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/chat"
	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/session"
)

type fakeUser struct {
	username string
	password string
	role     string
}

// fakeBooking stands in for the booking backend behind every interface the
// portal consumes.
type fakeBooking struct {
	mu           sync.Mutex
	users        map[string]fakeUser
	doctors      []backend.DoctorRecord
	appointments []backend.AppointmentRecord
	slots        []string
	nextID       int

	listDoctorsErr error
	deleteErr      error
	bookErr        error
	cancelErr      error
	chatReply      string
}

func newFakeBooking() *fakeBooking {
	return &fakeBooking{
		users: map[string]fakeUser{
			"alice@example.com": {username: "alice", password: "secret1", role: "user"},
			"bob@example.com":   {username: "bob", password: "secret2", role: "user"},
			"admin@example.com": {username: "admin", password: "admin123", role: "admin"},
		},
		slots:     []string{"09:00", "10:00", "11:00"},
		chatReply: "Drink water and rest.",
	}
}

func (f *fakeBooking) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeBooking) Register(_ context.Context, req backend.RegisterRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[req.Email]; ok {
		return &backend.APIError{Status: 400, Kind: backend.KindValidation, Message: "User with this email already exists"}
	}
	f.users[req.Email] = fakeUser{username: req.Username, password: req.Password, role: req.Role}
	return nil
}

func (f *fakeBooking) Login(_ context.Context, email, password string) (*backend.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, &backend.APIError{Status: 404, Kind: backend.KindNotFound, Message: "User not found"}
	}
	if u.password != password {
		return nil, &backend.APIError{Status: 400, Kind: backend.KindValidation, Message: "Incorrect password"}
	}
	return &backend.LoginResult{Email: email, Username: u.username, Role: u.role}, nil
}

func (f *fakeBooking) ListDoctors(context.Context) ([]backend.DoctorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listDoctorsErr != nil {
		return nil, f.listDoctorsErr
	}
	return append([]backend.DoctorRecord(nil), f.doctors...), nil
}

func (f *fakeBooking) AddDoctor(_ context.Context, d backend.DoctorRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = f.id("doc")
	f.doctors = append(f.doctors, d)
	return d.ID, nil
}

func (f *fakeBooking) DeleteDoctor(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, d := range f.doctors {
		if d.ID == id {
			f.doctors = append(f.doctors[:i], f.doctors[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{Status: 404, Kind: backend.KindNotFound, Message: "Doctor not found"}
}

func (f *fakeBooking) ListAppointments(_ context.Context, email string) ([]backend.AppointmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backend.AppointmentRecord
	for _, a := range f.appointments {
		if a.PatientEmail == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBooking) ListAllAppointments(context.Context) ([]backend.AppointmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.AppointmentRecord(nil), f.appointments...), nil
}

func (f *fakeBooking) CreateAppointment(_ context.Context, a backend.AppointmentRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return "", f.bookErr
	}
	a.ID = f.id("appt")
	f.appointments = append(f.appointments, a)
	return a.ID, nil
}

func (f *fakeBooking) CancelAppointment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	for i, a := range f.appointments {
		if a.ID == id {
			f.appointments = append(f.appointments[:i], f.appointments[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{Status: 404, Kind: backend.KindNotFound, Message: "Appointment not found"}
}

func (f *fakeBooking) AvailableSlots(context.Context, string, string) ([]string, error) {
	return f.slots, nil
}

func (f *fakeBooking) ChatText(context.Context, string, string) (*backend.ChatReply, error) {
	return &backend.ChatReply{Response: f.chatReply}, nil
}

func (f *fakeBooking) ChatAudio(context.Context, string, backend.Audio) (*backend.ChatReply, error) {
	return &backend.ChatReply{Response: f.chatReply}, nil
}

func (f *fakeBooking) addDoctor(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doctors = append(f.doctors, backend.DoctorRecord{
		ID:         id,
		Name:       name,
		Speciality: "Cardiology",
		Hospital:   "City Hospital",
		Availability: backend.AvailabilityRecord{
			Days: "Monday - Friday",
			Time: "09:00 - 17:00",
		},
	})
}

func (f *fakeBooking) addAppointment(id, email, doctorName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments = append(f.appointments, backend.AppointmentRecord{
		ID:           id,
		PatientEmail: email,
		PatientName:  strings.Split(email, "@")[0],
		DoctorID:     "d1",
		DoctorName:   doctorName,
		Date:         "2099-01-01",
		Time:         "10:00",
		Issue:        "Checkup",
	})
}

type testPortal struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	fb     *fakeBooking
	chat   *chat.Registry
}

type portalOption func(*RouterConfig)

func newTestPortal(t *testing.T, fb *fakeBooking, opts ...portalOption) *testPortal {
	t.Helper()

	logger := zerolog.Nop()
	rn, err := NewRenderer(logger)
	require.NoError(t, err)

	dir := doctor.NewDirectory(fb, nil, nil, logger)
	reg := chat.NewRegistry(chat.RegistryOptions{Responder: fb, Logger: logger})

	cfg := RouterConfig{
		Auth:          fb,
		Directory:     dir,
		Appointments:  appointment.NewService(fb, dir, nil, logger),
		Chat:          reg,
		Sessions:      session.NewManager(session.NewMemoryStore(100, time.Hour), time.Hour, false, logger),
		Renderer:      rn,
		MaxPhotoBytes: 1 << 20,
		MaxAudioBytes: 1 << 20,
		RedirectDelay: 1500 * time.Millisecond,
		Logger:        logger,
		Env:           "test",
		Version:       "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testPortal{t: t, srv: srv, client: client, fb: fb, chat: reg}
}

func (p *testPortal) do(req *http.Request) (*http.Response, string) {
	p.t.Helper()
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	return resp, string(body)
}

func (p *testPortal) get(path string) (*http.Response, string) {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, p.srv.URL+path, nil)
	require.NoError(p.t, err)
	return p.do(req)
}

func (p *testPortal) postForm(path string, values url.Values) (*http.Response, string) {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodPost, p.srv.URL+path, strings.NewReader(values.Encode()))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req)
}

func (p *testPortal) post(path, contentType string, body io.Reader) (*http.Response, string) {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodPost, p.srv.URL+path, body)
	require.NoError(p.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return p.do(req)
}

// login signs in through the matching form and fails the test otherwise.
func (p *testPortal) login(email, password string, admin bool) {
	p.t.Helper()
	path := "/login"
	if admin {
		path = "/admin/login"
	}
	resp, body := p.postForm(path, url.Values{"email": {email}, "password": {password}})
	require.Equal(p.t, http.StatusSeeOther, resp.StatusCode, body)
}
