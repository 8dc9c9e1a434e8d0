package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/spark200410/consultancy/internal/metrics"
)

const maxResponseBytes = 20 << 20

var errServerStatus = errors.New("backend server error")

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	JWTSecret  string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Client talks to the booking backend. Every authenticated call carries a
// bearer credential taken from the request context.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	signer  *TokenSigner
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("backend base url: %w", err)
	}
	if opts.JWTSecret == "" {
		return nil, errors.New("backend jwt secret is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "booking-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			opts.Logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL: base,
		http:    httpClient,
		breaker: breaker,
		signer:  NewTokenSigner(opts.JWTSecret, 15*time.Minute),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

type call struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

type rawResponse struct {
	status int
	body   []byte
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		c.metrics.ObserveBackend(cl.op, outcome, time.Since(start).Seconds())
	}()

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, cl.body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}

	if !cl.anonymous {
		cred, ok := CredentialFrom(ctx)
		if !ok {
			return ErrMissingCredential
		}
		token, err := c.signer.bearer(cred)
		if err != nil {
			return fmt.Errorf("sign credential: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: resp.StatusCode, body: data}
		if resp.StatusCode >= 500 {
			return raw, errServerStatus
		}
		return raw, nil
	})
	if err != nil && !errors.Is(err, errServerStatus) {
		c.logger.Warn().Err(err).Str("op", cl.op).Msg("backend request failed")
		return fmt.Errorf("%w: %s: %v", ErrTransport, cl.op, err)
	}
	raw := res.(*rawResponse)

	var env envelope
	envErr := json.Unmarshal(raw.body, &env)

	if raw.status < 200 || raw.status > 299 {
		msg := env.Message
		if envErr != nil || msg == "" {
			msg = http.StatusText(raw.status)
		}
		return &APIError{Status: raw.status, Kind: classify(raw.status, msg), Message: msg}
	}

	if len(raw.body) == 0 {
		return nil
	}
	if envErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, cl.op, envErr)
	}
	if env.Success != nil && !*env.Success {
		return &APIError{Status: raw.status, Kind: KindValidation, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(raw.body, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, cl.op, err)
		}
	}

	c.logger.Debug().Str("op", cl.op).Int("status", raw.status).Dur("took", time.Since(start)).Msg("backend request")
	return nil
}

// Ping reports whether the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, call{op: "ping", method: http.MethodGet, path: "/", anonymous: true}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return nil
	}
	return err
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	body, err := jsonBody(req)
	if err != nil {
		return err
	}
	return c.do(ctx, call{
		op: "register", method: http.MethodPost, path: "/register",
		body: body, contentType: "application/json", anonymous: true,
	}, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := c.do(ctx, call{
		op: "login", method: http.MethodPost, path: "/login",
		body: body, contentType: "application/json", anonymous: true,
	}, &resp); err != nil {
		return nil, err
	}

	result := &LoginResult{
		Email:    firstNonEmpty(resp.User.Email, email),
		Username: resp.User.Username,
		Role:     firstNonEmpty(resp.Role, resp.User.Role, "user"),
		Token:    resp.Token,
	}
	return result, nil
}

func (c *Client) ListDoctors(ctx context.Context) ([]DoctorRecord, error) {
	var resp struct {
		Doctors []DoctorRecord `json:"doctors"`
	}
	if err := c.do(ctx, call{op: "list_doctors", method: http.MethodGet, path: "/doctors"}, &resp); err != nil {
		return nil, err
	}
	if resp.Doctors == nil {
		resp.Doctors = []DoctorRecord{}
	}
	return resp.Doctors, nil
}

func (c *Client) AddDoctor(ctx context.Context, d DoctorRecord) (string, error) {
	body, err := jsonBody(d)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, call{
		op: "add_doctor", method: http.MethodPost, path: "/doctors",
		body: body, contentType: "application/json",
	}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) DeleteDoctor(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op: "delete_doctor", method: http.MethodDelete, path: "/doctors",
		query: url.Values{"id": {id}},
	}, nil)
}

type appointmentsResponse struct {
	Appointments []AppointmentRecord `json:"appointments"`
}

// ListAppointments returns the appointments booked by one patient.
func (c *Client) ListAppointments(ctx context.Context, patientEmail string) ([]AppointmentRecord, error) {
	var resp appointmentsResponse
	if err := c.do(ctx, call{
		op: "list_appointments", method: http.MethodGet, path: "/appointments",
		query: url.Values{"email": {patientEmail}},
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Appointments == nil {
		resp.Appointments = []AppointmentRecord{}
	}
	return resp.Appointments, nil
}

// ListAllAppointments is the admin view over every patient.
func (c *Client) ListAllAppointments(ctx context.Context) ([]AppointmentRecord, error) {
	var resp appointmentsResponse
	if err := c.do(ctx, call{op: "list_all_appointments", method: http.MethodGet, path: "/adminappointments"}, &resp); err != nil {
		return nil, err
	}
	if resp.Appointments == nil {
		resp.Appointments = []AppointmentRecord{}
	}
	return resp.Appointments, nil
}

func (c *Client) CreateAppointment(ctx context.Context, a AppointmentRecord) (string, error) {
	a.ID = ""
	body, err := jsonBody(a)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, call{
		op: "create_appointment", method: http.MethodPost, path: "/appointments",
		body: body, contentType: "application/json",
	}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op: "cancel_appointment", method: http.MethodDelete, path: "/appointments/" + url.PathEscape(id),
	}, nil)
}

// AvailableSlots lists the free hourly start times of a doctor on date (YYYY-MM-DD).
func (c *Client) AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	var resp struct {
		AvailableSlots []string `json:"availableSlots"`
	}
	if err := c.do(ctx, call{
		op: "available_slots", method: http.MethodGet, path: "/appointments/availability",
		query: url.Values{"doctorId": {doctorID}, "date": {date}},
	}, &resp); err != nil {
		return nil, err
	}
	return resp.AvailableSlots, nil
}

func (c *Client) ChatText(ctx context.Context, conversationID, question string) (*ChatReply, error) {
	body, err := jsonBody(map[string]string{"question": question, "conversation_id": conversationID})
	if err != nil {
		return nil, err
	}
	var reply ChatReply
	if err := c.do(ctx, call{
		op: "chat_text", method: http.MethodPost, path: "/chat",
		body: body, contentType: "application/json",
	}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) ChatAudio(ctx context.Context, conversationID string, audio Audio) (*ChatReply, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.WriteField("conversation_id", conversationID); err != nil {
		return nil, fmt.Errorf("write conversation id: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	var reply ChatReply
	if err := c.do(ctx, call{
		op: "chat_audio", method: http.MethodPost, path: "/chat",
		body: &buf, contentType: mw.FormDataContentType(),
	}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
