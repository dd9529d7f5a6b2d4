package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type registration struct {
	Username string `validate:"required,max=64,excludesall=@"`
	Password string `validate:"required,min=6"`
}

type newPassword struct {
	Password string `validate:"required,min=6"`
}

type recoveryEmail struct {
	Email string `validate:"required,email"`
}

// validateStruct runs the struct tags of v and converts failures to *errs.ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	out := &errs.ValidationError{Fields: make([]errs.FieldError, 0, len(ves))}
	for _, fe := range ves {
		out.Fields = append(out.Fields, errs.FieldError{Field: fieldName(fe), Reason: reason(fe)})
	}
	return out
}

// fieldName turns "ManualInput.Steps[0].Title" into "steps[0].title".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("needs at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a URL"
	case "excludesall":
		return "must not contain @"
	default:
		return "failed " + fe.Tag()
	}
}

// normalizeManual trims every text field of in.
func normalizeManual(in model.ManualInput) model.ManualInput {
	out := model.ManualInput{
		Title:       strings.TrimSpace(in.Title),
		Category:    model.Category(strings.TrimSpace(string(in.Category))),
		Description: strings.TrimSpace(in.Description),
		Steps:       make([]model.StepInput, len(in.Steps)),
	}
	for i, s := range in.Steps {
		out.Steps[i] = model.StepInput{
			Title:    strings.TrimSpace(s.Title),
			Content:  strings.TrimSpace(s.Content),
			ImageURL: strings.TrimSpace(s.ImageURL),
		}
	}
	return out
}

// EmailForUsername synthesizes the backend login email for a username.
func EmailForUsername(username, domain string) string {
	return strings.ToLower(strings.TrimSpace(username) + "@" + domain)
}
