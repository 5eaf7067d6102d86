package obirdex

import "github.com/kailas-cloud/obirdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrTransport     = domain.ErrTransport
	ErrBackendStatus = domain.ErrBackendStatus
	ErrNormalization = domain.ErrNormalization
	ErrInvalidQuery  = domain.ErrInvalidQuery
)

// Typed errors carrying failure details. Use errors.As() to extract.
type (
	TransportError     = domain.TransportError
	BackendStatusError = domain.BackendStatusError
	NormalizationError = domain.NormalizationError
)

// ErrorMessage returns the text a presentation layer should show for err.
func ErrorMessage(err error) string { return domain.Message(err) }
