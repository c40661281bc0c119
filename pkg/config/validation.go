package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Store.Type == "badger" {
		path, _ := cfg.Store.Badger["db_path"].(string)
		inMemory, _ := cfg.Store.Badger["in_memory"].(bool)
		if path == "" && !inMemory {
			return fmt.Errorf("store.badger: db_path is required")
		}
	}

	if cfg.GC.Enabled {
		if cfg.Store.Type != "badger" {
			return fmt.Errorf("gc: value-log gc requires store.type badger (got %q)", cfg.Store.Type)
		}
		if cfg.GC.Interval <= 0 {
			return fmt.Errorf("gc: interval must be positive when gc is enabled")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
