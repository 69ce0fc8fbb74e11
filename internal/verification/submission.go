package verification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Submission is one verification request: three image references and who sent them.
type Submission struct {
	ID        id.SubmissionID `json:"submission_id"`
	UserID    id.UserID       `json:"user_id"`
	FrontRef  string          `json:"front_ref" validate:"required,max=2048"`
	BackRef   string          `json:"back_ref" validate:"required,max=2048,nefield=FrontRef"`
	SelfieRef string          `json:"selfie_ref" validate:"required,max=2048,nefield=FrontRef,nefield=BackRef"`
}

// Validate checks identifiers and references. Errors carry CodeInvalidInput.
func (s Submission) Validate() error {
	var problems []string
	if s.ID.IsNil() {
		problems = append(problems, "submission ID is required")
	}
	if s.UserID.IsNil() {
		problems = append(problems, "user ID is required")
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid submission")
		}
		problems = append(problems, lo.Map(verrs, func(fe validator.FieldError, _ int) string {
			return describe(fe)
		})...)
	}
	if len(problems) == 0 {
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidInput, "invalid submission: "+strings.Join(lo.Uniq(problems), "; "))
}

func describe(fe validator.FieldError) string {
	field := lo.SnakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long"
	case "nefield":
		return field + " must differ from " + lo.SnakeCase(fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func (s Submission) moderation() moderation.Submission {
	return moderation.Submission{
		ID:        s.ID,
		UserID:    s.UserID,
		FrontRef:  s.FrontRef,
		BackRef:   s.BackRef,
		SelfieRef: s.SelfieRef,
	}
}
