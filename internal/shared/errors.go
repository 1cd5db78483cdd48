package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Vocabulary service errors
	ErrTransport       = fmt.Errorf("transport error")
	ErrParsing         = fmt.Errorf("parsing error")
	ErrServer          = fmt.Errorf("server error")
	ErrUser            = fmt.Errorf("user error")
	ErrDeserialization = fmt.Errorf("deserialization error")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDuplicateNote      = fmt.Errorf("duplicate note")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// StatusError classifies a non-2xx HTTP status: 5xx maps to [ErrServer], 4xx to [ErrUser]
// and anything else to [ErrAPIRequest].
func StatusError(status int, msg string) error {
	switch {
	case status >= 500:
		return fmt.Errorf("%w: %s (status %d)", ErrServer, msg, status)
	case status >= 400:
		return fmt.Errorf("%w: %s (status %d)", ErrUser, msg, status)
	default:
		return fmt.Errorf("%w: %s (status %d)", ErrAPIRequest, msg, status)
	}
}
