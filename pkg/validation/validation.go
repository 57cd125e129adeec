// Package validation plugs go-playground/validator into echo so handlers
// can validate bound request structs via their `validate` tags.
package validation

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

// RequestValidator implements echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// New creates a request validator.
func New() *RequestValidator {
	return &RequestValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks the struct's validate tags and converts failures into a
// 400 with a readable field list.
func (v *RequestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("field '%s' failed validation rule '%s'", fe.Field(), fe.Tag())
	}
	return httperror.NewHTTPError(http.StatusBadRequest, msg)
}
