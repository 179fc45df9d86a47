// Package validation validates form and request structs with
// go-playground/validator.
//
// A single validator instance is shared by the process; it caches struct
// metadata and carries the custom rules registered here:
//
//   - strongpassword: at least one letter and one digit
//
// Field names in messages come from the form or json tag, so errors read
// the way the user saw the form:
//
//	type registerForm struct {
//	    Name     string `form:"name" validate:"required,min=2"`
//	    Password string `form:"password" validate:"required,min=8,strongpassword"`
//	}
//
//	if verr := validation.ValidateStruct(&f); verr != nil {
//	    return verr.First()
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Messager lets a struct replace the generated message of a field rule.
// Keys are "field.tag", for example "description.min".
type Messager interface {
	ValidationMessages() map[string]string
}

// ValidationError is a single failed rule.
type ValidationError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the form name of the failed field.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the failed rule.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the rule parameter, "8" for min=8.
func (e *ValidationError) Param() string { return e.param }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects every failed rule of a struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the failed rules in field order.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// First returns the message of the first failed rule. Forms show one
// message at a time.
func (ve *RequestValidationError) First() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	return ve.errors[0].message
}

// Field returns the message for a field, "" if it passed.
func (ve *RequestValidationError) Field(name string) string {
	for _, e := range ve.errors {
		if e.field == name {
			return e.message
		}
	}
	return ""
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.errors))
	for i, e := range ve.errors {
		msgs[i] = e.message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(tagName)
		if err := validate.RegisterValidation("strongpassword", strongPassword); err != nil {
			panic(fmt.Sprintf("validation: register strongpassword: %v", err))
		}
	})
	return validate
}

func tagName(f reflect.StructField) string {
	for _, key := range []string{"form", "json", "koanf"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// StrongPassword reports whether s contains a letter and a digit.
func StrongPassword(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func strongPassword(fl validator.FieldLevel) bool {
	return StrongPassword(fl.Field().String())
}

// ValidateStruct validates s. It returns nil when every rule passes.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []ValidationError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	var overrides map[string]string
	if m, ok := s.(Messager); ok {
		overrides = m.ValidationMessages()
	}

	out := make([]ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		msg, ok := overrides[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = translateError(fe)
		}
		out[i] = ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: msg,
		}
	}
	return &RequestValidationError{errors: out}
}

var errorMessageTemplates = map[string]string{
	"required":       "%s is required",
	"email":          "%s must be a valid email address",
	"url":            "%s must be a valid URL",
	"latitude":       "%s must be a valid latitude (-90 to 90)",
	"longitude":      "%s must be a valid longitude (-180 to 180)",
	"strongpassword": "%s should contain letters and numbers",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
