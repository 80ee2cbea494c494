package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every Config; validator caches struct metadata.
var validate = validator.New()

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ExperimentPath holds network/, input/ and receives raw_output/.
	ExperimentPath string `validate:"required"`

	LogFormat       string `validate:"oneof=text json"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	HealthcheckPort int    `validate:"min=0,max=65535"`

	// Timeout bounds the wall-clock time of each round. Zero disables it.
	Timeout time.Duration `validate:"min=0"`
	Rounds  int           `validate:"min=1"`
	// VirtualHorizon bounds the virtual time of each round. Zero uses the
	// clock default.
	VirtualHorizon time.Duration `validate:"min=0"`
	// Variables override network asset variable defaults.
	Variables map[string]string `validate:"dive,keys,required,endkeys"`
}

// NewConfig applies defaults to cfg and validates it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Rounds == 0 {
		cfg.Rounds = 1
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

func formatValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is a required configuration field and cannot be empty", e.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", e.Field(), e.Param(), e.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s=%s', got %v", e.Field(), e.Tag(), e.Param(), e.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
