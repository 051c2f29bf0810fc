package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidUpload is returned when an upload lacks a title, artist or file.
var ErrInvalidUpload = errors.New("invalid upload")

// credentialsForm is the body of POST /signup and POST /login.
type credentialsForm struct {
	Username string `form:"username" validate:"required,max=100"`
	Password string `form:"password" validate:"required"`
}

// uploadForm is the body of POST /upload. Filename comes from the file part.
type uploadForm struct {
	Title    string `form:"title" validate:"required,max=255"`
	Artist   string `form:"artist" validate:"required,max=255"`
	Filename string `form:"file" validate:"required,max=255"`
}

func parseCredentials(r *http.Request) credentialsForm {
	return credentialsForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
}

// formValidator wraps go-playground/validator and reports fields by their form name.
type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("form"); name != "" {
			return name
		}
		return fld.Name
	})
	return &formValidator{v: v}
}

// FieldError lists the form fields that failed validation.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

// Validate returns a *FieldError naming every failing field.
func (f *formValidator) Validate(form any) error {
	err := f.v.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field())
	}
	sort.Strings(fields)
	return &FieldError{Fields: fields}
}
