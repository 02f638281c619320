package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("clock", validateClock); err != nil {
		panic(fmt.Sprintf("failed to register clock validator: %v", err))
	}
	if err := Validate.RegisterValidation("node_type", validateNodeType); err != nil {
		panic(fmt.Sprintf("failed to register node_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("action_type", validateActionType); err != nil {
		panic(fmt.Sprintf("failed to register action_type validator: %v", err))
	}
}

// validateClock validates an "HH:MM" string
func validateClock(fl validator.FieldLevel) bool {
	_, _, err := models.ParseClock(fl.Field().String())
	return err == nil
}

func validateNodeType(fl validator.FieldLevel) bool {
	return models.NodeType(fl.Field().String()).Valid()
}

func validateActionType(fl validator.FieldLevel) bool {
	return models.ActionType(fl.Field().String()).Valid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateCommand checks a command's variant shape and then its payload tags
func ValidateCommand(cmd *models.MindCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := Validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrInvalidCommand, cmd.Kind, err)
	}
	for _, q := range quietHours(cmd) {
		if _, err := q.Window(); err != nil {
			return fmt.Errorf("%w: %s: %v", models.ErrInvalidCommand, cmd.Kind, err)
		}
	}
	return nil
}

// ValidateActionType validates an action type string value
func ValidateActionType(value string) error {
	if !models.ActionType(value).Valid() {
		return fmt.Errorf("invalid action: %s", value)
	}
	return nil
}

func quietHours(cmd *models.MindCommand) []models.QuietHourDescriptor {
	switch {
	case cmd.CreatePillar != nil:
		return cmd.CreatePillar.QuietHours
	case cmd.UpdatePillar != nil:
		return cmd.UpdatePillar.QuietHours
	default:
		return nil
	}
}
