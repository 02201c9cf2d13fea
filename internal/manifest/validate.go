package manifest

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

var structValidator = validator.New()

// Validate runs struct-tag validation over any manifest type and translates the first
// failure into apperrors.Malformed; structural shape errors are cheap enough that
// implementers don't need the full accumulation multierror gives ValidateVariables.
func Validate(m any) error {
	if err := structValidator.Struct(m); err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "manifest validation failed")
	}
	return nil
}

// ValidateVariables checks a claim's input map against a module's input schema (spec
// §4.3 step 3), accumulating every violation via go-multierror rather than stopping at
// the first one, since a caller correcting a claim wants the whole list at once.
func ValidateVariables(schema []Variable, values map[string]any) error {
	byName := make(map[string]Variable, len(schema))
	for _, v := range schema {
		byName[v.Name] = v
	}

	var result *multierror.Error
	for name := range values {
		if _, ok := byName[name]; !ok {
			result = multierror.Append(result, apperrors.New(apperrors.UnknownVariable, "unknown variable %q", name))
		}
	}

	for _, v := range schema {
		value, present := values[v.Name]
		if !present {
			if v.Default != nil || v.Nullable {
				continue
			}
			result = multierror.Append(result, apperrors.New(apperrors.MissingRequired, "missing required variable %q", v.Name))
			continue
		}
		if err := checkType(v, value); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := checkConstraints(v, value); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}

func checkType(v Variable, value any) error {
	ok := false
	switch v.Type {
	case TypeString:
		_, ok = value.(string)
	case TypeNumber:
		switch value.(type) {
		case int, int64, float64:
			ok = true
		}
	case TypeBool:
		_, ok = value.(bool)
	case TypeList:
		_, ok = value.([]any)
	case TypeMap:
		_, ok = value.(map[string]any)
	default:
		ok = true
	}
	if !ok {
		return apperrors.New(apperrors.TypeMismatch, "variable %q expected type %s, got %T", v.Name, v.Type, value)
	}
	return nil
}

func checkConstraints(v Variable, value any) error {
	for _, c := range v.Constraints {
		if c.Regex != "" {
			s, ok := value.(string)
			if !ok {
				continue
			}
			re, err := regexp.Compile(c.Regex)
			if err != nil {
				return apperrors.Wrap(apperrors.Malformed, err, "invalid constraint regex for %q", v.Name)
			}
			if !re.MatchString(s) {
				return apperrors.New(apperrors.ConstraintViolation, "variable %q does not match pattern %s", v.Name, c.Regex)
			}
		}
		if s, ok := value.(string); ok {
			if c.MinLength != nil && len(s) < *c.MinLength {
				return apperrors.New(apperrors.ConstraintViolation, "variable %q shorter than minLength %d", v.Name, *c.MinLength)
			}
			if c.MaxLength != nil && len(s) > *c.MaxLength {
				return apperrors.New(apperrors.ConstraintViolation, "variable %q longer than maxLength %d", v.Name, *c.MaxLength)
			}
		}
		if len(c.Enum) > 0 {
			s := fmt.Sprint(value)
			matched := false
			for _, allowed := range c.Enum {
				if allowed == s {
					matched = true
					break
				}
			}
			if !matched {
				return apperrors.New(apperrors.ConstraintViolation, "variable %q not in enum %v", v.Name, c.Enum)
			}
		}
	}
	return nil
}
