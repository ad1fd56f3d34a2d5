package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/goevery/classcast/internal/ierr"
)

type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Validator checks inbound messages against their `validate` struct tags and
// reports failures with JSON field names.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() *Validator {
	validate := validator.New()

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate,
		translator,
	}
}

func (v *Validator) Validate(request any) error {
	err := v.validate.Struct(request)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return ierr.New(ierr.ErrorCodeInvalidArgument, err)
	}

	fields := make([]FieldError, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		message := fieldError.Translate(v.translator)

		fields = append(fields, FieldError{
			Field: fieldError.Field(),
			Error: message,
		})
		messages = append(messages, message)
	}

	return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New(strings.Join(messages, "; "))).
		WithData(fields)
}
