package validate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CheckFunc is an extra structural check run after the struct-tag pass,
// typically an array-cardinality rule the tag syntax cannot express.
type CheckFunc func(output any) []Issue

// SchemaValidator implements the schema tier: required fields, enum and type
// constraints via go-playground struct tags, plus optional cardinality
// checks. Pure and deterministic, no external calls.
type SchemaValidator struct {
	validate *validator.Validate
	checks   []CheckFunc
}

// NewSchemaValidator builds a schema-tier validator with optional extra
// checks appended after the struct-tag pass.
func NewSchemaValidator(checks ...CheckFunc) *SchemaValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &SchemaValidator{
		validate: v,
		checks:   checks,
	}
}

// Validate implements TierValidator.
func (s *SchemaValidator) Validate(ctx context.Context, output any) (Result, error) {
	var issues []Issue

	if err := s.validate.StructCtx(ctx, output); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return Result{}, fmt.Errorf("validate: schema check: %w", err)
		}
		for _, fieldError := range fieldErrors {
			issues = append(issues, Issue{
				Field:  fieldPath(fieldError),
				Reason: tagReason(fieldError),
			})
		}
	}

	for _, check := range s.checks {
		issues = append(issues, check(output)...)
	}

	if len(issues) > 0 {
		return Fail(TierSchema, issues...), nil
	}
	return Pass(TierSchema), nil
}

// fieldPath strips the root struct name from the validator namespace so the
// issue reads "slots[0].index" rather than "Strategy.Slots[0].Index".
func fieldPath(fieldError validator.FieldError) string {
	namespace := fieldError.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	return namespace
}

func tagReason(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "missing required field"
	case "min":
		return fmt.Sprintf("below minimum %s", fieldError.Param())
	case "max":
		return fmt.Sprintf("above maximum %s", fieldError.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fieldError.Param())
	default:
		return fmt.Sprintf("failed %q constraint", fieldError.Tag())
	}
}
