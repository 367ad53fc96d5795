package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError lists every rejected field.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is a single rejected field.
type FieldError struct {
	Key     string
	Tag     string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalid.Error()
	}
	msgs := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		msgs[i] = fe.Message
	}
	return ErrInvalid.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Validate checks every field rule.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	ve := &ValidationError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		key := configKey(fe.Namespace())
		ve.Fields[i] = FieldError{
			Key:     key,
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: formatFieldError(key, fe),
		}
	}
	return ve
}

// configKey turns "Config.BLE.MaxAttempts" into "ble.max_attempts".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	switch s {
	case "BLE", "MQTT":
		return strings.ToLower(s)
	case "ClientID":
		return "client_id"
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatFieldError(key string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "gt":
		return key + " must be positive"
	case "gte":
		return key + " must not be negative"
	case "url":
		return key + " must be a URL (e.g., tcp://localhost:1883)"
	case "bleuuid":
		return key + " must be a 16-, 32- or 128-bit UUID"
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}
