package monitor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("repo", func(fl validator.FieldLevel) bool {
		_, _, err := snapshot.SplitRepo(fl.Field().String())
		return err == nil
	})
	return v
}

func (s *Service) validate(req Request) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "repo is required (no default repository configured)"
	case "repo":
		return fmt.Sprintf("repo %q must be in owner/name form", fe.Value())
	case "gte":
		return fmt.Sprintf("pr must be a positive number, got %v", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
