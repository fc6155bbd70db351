package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Backoff strategies accepted by retry.backoff.strategy
const (
	BackoffNone        = "none"
	BackoffExponential = "exponential"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator returns a validator that reports fields by their koanf key.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct constraints first, then cross-field rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewValidationError("config", "must not be nil")
	}

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fromValidationErrors(verrs)
		}
		return err
	}

	if err := validateRateLimit(&cfg.Retry.RateLimit); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}

	return nil
}

func validateRateLimit(cfg *RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.PerSecond <= 0 {
		return NewValidationError("retry.ratelimit.persecond", "must be positive when rate limiting is enabled")
	}
	if cfg.Burst <= 0 {
		return NewValidationError("retry.ratelimit.burst", "must be positive when rate limiting is enabled")
	}
	return nil
}

// fromValidationErrors converts validator failures into joined ConfigErrors.
func fromValidationErrors(verrs validator.ValidationErrors) error {
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		switch fe.Tag() {
		case "required":
			envVar := EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
			errs = append(errs, NewMissingFieldError(field, envVar, field))
		case "oneof":
			errs = append(errs, NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fe.Value()), strings.Fields(fe.Param())))
		default:
			errs = append(errs, NewValidationError(field, fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())))
		}
	}
	return errors.Join(errs...)
}

// fieldPath turns "Config.retry.maxattempts" into "retry.maxattempts".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
