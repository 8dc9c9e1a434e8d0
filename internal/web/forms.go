package web

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	formDecoder   = newFormDecoder()
	formValidator = newFormValidator()
)

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("schema"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type LoginForm struct {
	Email    string `schema:"email" validate:"required,email"`
	Password string `schema:"password" validate:"required"`
}

type AdminLoginForm struct {
	Email    string `schema:"email" validate:"required,email"`
	Password string `schema:"password" validate:"required,min=6"`
}

type RegisterForm struct {
	Username        string `schema:"username" validate:"required"`
	Email           string `schema:"email" validate:"required,email"`
	Password        string `schema:"password" validate:"required,min=6"`
	ConfirmPassword string `schema:"confirmPassword" validate:"eqfield=Password"`
}

// FieldErrors maps a form field name to the message shown under it.
type FieldErrors map[string]string

var fieldLabels = map[string]string{
	"username": "Username",
	"email":    "Email",
	"password": "Password",
}

// decodeForm fills dst from values and validates it. The returned
// FieldErrors is nil when the form is valid.
func decodeForm(dst any, values url.Values) FieldErrors {
	if err := formDecoder.Decode(dst, values); err != nil {
		return FieldErrors{"general": msgCheckForm}
	}
	if s, ok := dst.(interface{ trim() }); ok {
		s.trim()
	}

	err := formValidator.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"general": msgCheckForm}
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = fieldMessage(field, fe.Tag(), fe.Param())
	}
	return out
}

func fieldMessage(field, tag, param string) string {
	label := fieldLabels[field]
	if label == "" {
		label = "This field"
	}
	switch tag {
	case "required":
		return label + " is required"
	case "email":
		return "Email is invalid"
	case "min":
		return label + " must be at least " + param + " characters"
	case "eqfield":
		return "Passwords do not match"
	}
	return label + " is invalid"
}

func (f *LoginForm) trim()      { f.Email = strings.TrimSpace(f.Email) }
func (f *AdminLoginForm) trim() { f.Email = strings.TrimSpace(f.Email) }
func (f *RegisterForm) trim() {
	f.Email = strings.TrimSpace(f.Email)
	f.Username = strings.TrimSpace(f.Username)
}
