package doctor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

const (
	MsgRequiredFields = "Please fill in all required fields."
	MsgPhotoRequired  = "Please upload a profile photo."
	MsgAddFailed      = "Failed to add doctor"
	MsgAdded          = "Doctor added successfully!"
)

var (
	ErrPhotoTooLarge = errors.New("profile photo is too large")
	ErrPhotoNotImage = errors.New("profile photo must be an image")
)

// FormError carries the message shown above the add doctor form.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

var (
	decoder  = newDecoder()
	validate = validator.New(validator.WithRequiredStructEnabled())
)

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// AddForm is the admin's add doctor form. Only the fields of the selected
// availability type are required.
type AddForm struct {
	Name             string `schema:"name" validate:"required"`
	Hospital         string `schema:"hospital" validate:"required"`
	Speciality       string `schema:"speciality" validate:"required"`
	AvailabilityType string `schema:"availabilityType" validate:"oneof=regular custom"`
	Days             string `schema:"days" validate:"required_if=AvailabilityType regular"`
	Time             string `schema:"time" validate:"required_if=AvailabilityType regular"`
	Sunday           string `schema:"sunday"`
	MondayThursday   string `schema:"mondayThursday" validate:"required_if=AvailabilityType custom"`
	Tuesday          string `schema:"tuesday" validate:"required_if=AvailabilityType custom"`

	// PhotoDataURL is set from the uploaded file, never from form values.
	PhotoDataURL string `schema:"-"`
}

// EmptyAddForm is the initial shape of the form.
func EmptyAddForm() AddForm {
	return AddForm{AvailabilityType: KindRegular}
}

func ParseAddForm(values url.Values) (AddForm, error) {
	f := EmptyAddForm()
	if err := decoder.Decode(&f, values); err != nil {
		return f, fmt.Errorf("decode add doctor form: %w", err)
	}
	f.Name = strings.TrimSpace(f.Name)
	f.Hospital = strings.TrimSpace(f.Hospital)
	f.Speciality = strings.TrimSpace(f.Speciality)
	if f.AvailabilityType == "" {
		f.AvailabilityType = KindRegular
	}
	return f, nil
}

// Validate checks the text fields first and the photo second, so the
// admin sees one message at a time.
func (f AddForm) Validate() error {
	if err := validate.Struct(f); err != nil {
		return &FormError{Message: MsgRequiredFields}
	}
	if f.PhotoDataURL == "" {
		return &FormError{Message: MsgPhotoRequired}
	}
	return nil
}

func (f AddForm) Availability() Availability {
	if f.AvailabilityType == KindCustom {
		return Custom{MondayThursday: f.MondayThursday, Tuesday: f.Tuesday}
	}
	return Regular{Days: f.Days, Time: f.Time, Sunday: f.Sunday}
}

func (f AddForm) Doctor() Doctor {
	return Doctor{
		Name:         f.Name,
		Hospital:     f.Hospital,
		Speciality:   f.Speciality,
		ProfilePhoto: f.PhotoDataURL,
		Availability: f.Availability(),
	}
}

// PhotoDataURL reads at most max bytes of an uploaded image and returns it
// as a data URL. The content type is sniffed, not trusted from the client.
func PhotoDataURL(r io.Reader, max int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return "", fmt.Errorf("read profile photo: %w", err)
	}
	if int64(len(data)) > max {
		return "", ErrPhotoTooLarge
	}
	if len(data) == 0 {
		return "", ErrPhotoNotImage
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrPhotoNotImage
	}

	var buf bytes.Buffer
	buf.WriteString("data:")
	buf.WriteString(mt.String())
	buf.WriteString(";base64,")
	buf.WriteString(base64.StdEncoding.EncodeToString(data))
	return buf.String(), nil
}
