package monitoring

import (
	"github.com/rs/zerolog/log"
)

// Alert raises an operational alert (logged for now; a pager integration
// consumes these log lines downstream).
func Alert(message string, labels map[string]string) {
	event := log.Error().Str("alert", message)
	for key, value := range labels {
		event = event.Str(key, value)
	}
	event.Msg("ALERT: tenant routing issue detected")
}
