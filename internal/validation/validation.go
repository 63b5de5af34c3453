package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fedutinova/pagegen/internal/common"
	"github.com/fedutinova/pagegen/internal/job"
	"github.com/go-playground/validator/v10"
)

const (
	MaxBodyBytes      = 2 << 20 // 2mb
	MaxMessageLength  = 8000
	MaxPreviousLength = 200000

	DefaultTemperature = 0.2
	DefaultTopP        = 0.95
)

// GenerateRequest is the body of POST /api/ai/generate.
type GenerateRequest struct {
	Message      string         `json:"message" validate:"required,nonblank,max=8000"`
	PreviousHTML string         `json:"previous_html" validate:"max=200000"`
	Temperature  *float64       `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	TopP         *float64       `json:"top_p" validate:"omitempty,gte=0,lte=1"`
	Seed         *int           `json:"seed" validate:"omitempty,gte=0"`
	ContextSize  *int           `json:"num_ctx" validate:"omitempty,gte=256,lte=131072"`
	MaxTokens    *int           `json:"num_predict" validate:"omitempty,gte=1,lte=32768"`
	ExpectedSVGs *int           `json:"expected_svgs" validate:"omitempty,gte=0,lte=100"`
	Extra        map[string]any `json:"extra"`
}

// ToJobRequest fills the sampling defaults the API promises and copies the rest.
func (r GenerateRequest) ToJobRequest() job.Request {
	temp, topP := DefaultTemperature, DefaultTopP
	if r.Temperature != nil {
		temp = *r.Temperature
	}
	if r.TopP != nil {
		topP = *r.TopP
	}
	return job.Request{
		Message:      r.Message,
		PreviousHTML: r.PreviousHTML,
		Temperature:  &temp,
		TopP:         &topP,
		Seed:         r.Seed,
		ContextSize:  r.ContextSize,
		MaxTokens:    r.MaxTokens,
		ExpectedSVGs: r.ExpectedSVGs,
		Extra:        r.Extra,
	}
}

type ValidationErrors []common.ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == common.ErrValidation
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// ValidateGenerateRequest returns nil or ValidationErrors naming the offending JSON fields.
func ValidateGenerateRequest(req GenerateRequest) error {
	err := instance().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, common.ValidationError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "nonblank":
		return "must not be blank"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}
