package config

import (
	"fmt"
	"strings"

	"github.com/nicolive-tools/ndgr-downloader/internal/discovery"
)

// ValidationErrors collects all channel validation errors
type ValidationErrors struct {
	InvalidChannels []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidChannels) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	sb.WriteString("\nInvalid channels:\n")
	for _, ch := range e.InvalidChannels {
		sb.WriteString(fmt.Sprintf("  - %s\n", ch))
	}
	sb.WriteString(fmt.Sprintf("\nValid channel aliases: %s (native kl* ids also accepted)\n",
		strings.Join(discovery.KnownChannels(), ", ")))

	return sb.String()
}

// ValidateChannels checks every channel id resolves to a native id.
func ValidateChannels(channels []string) error {
	errs := &ValidationErrors{}

	for _, ch := range channels {
		if _, err := discovery.ResolveChannel(ch); err != nil {
			errs.InvalidChannels = append(errs.InvalidChannels, ch)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
