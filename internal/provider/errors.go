package provider

import "errors"

var (
	// ErrMalformedPayload indicates a provider response is missing required
	// identity fields or carries data for a different lot than requested.
	ErrMalformedPayload = errors.New("provider: malformed payload")

	// ErrUnsupportedLot indicates the provider does not serve the requested
	// media kind.
	ErrUnsupportedLot = errors.New("provider: unsupported lot")

	// ErrUnknownSource indicates no adapter is registered for the source tag.
	ErrUnknownSource = errors.New("provider: unknown source")
)
