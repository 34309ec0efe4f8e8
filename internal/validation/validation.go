package validation

import (
	"errors"
	"reflect"
	"strings"

	val "github.com/go-playground/validator/v10"
)

var messages = map[string]string{
	"required": "{field} is required",
	"gte":      "{field} must be greater than or equal to {param}",
	"lte":      "{field} must be less than or equal to {param}",
	"oneof":    "{field} must be one of {param}",
	"min":      "{field} must contain at least {param} item(s)",
	"max":      "{field} must contain at most {param} item(s)",
}

var validate = newValidate()

func newValidate() *val.Validate {
	v := val.New(val.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates s against its `validate` tags and returns the first
// failure as a readable message, or "" when s is valid.
func Struct(s any) string {
	err := validate.Struct(s)
	if err == nil {
		return ""
	}

	var errs val.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	for _, fe := range errs {
		msg := messages[fe.Tag()]
		if msg == "" {
			continue
		}
		field := fieldPath(fe.Namespace())
		msg = strings.ReplaceAll(msg, "{field}", field)
		return strings.ReplaceAll(msg, "{param}", fe.Param())
	}
	return errs.Error()
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
