package apiclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures for presentation.
type ErrorKind string

const (
	// KindConnectivity covers unreachable servers and malformed URLs.
	KindConnectivity ErrorKind = "connectivity"
	// KindProtocol covers non-2xx responses.
	KindProtocol ErrorKind = "protocol"
	// KindFormat covers bodies with an unexpected shape.
	KindFormat ErrorKind = "format"
)

// ErrInvalidBaseURL reports an API URL that cannot address a server.
var ErrInvalidBaseURL = errors.New("apiclient: invalid base url")

// FetchError is returned by FetchSpec and Forms. Message is meant for users;
// Err carries the underlying cause.
type FetchError struct {
	Kind    ErrorKind
	URL     string
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Kind == KindConnectivity && e.Err != nil && !errors.Is(e.Err, ErrInvalidBaseURL) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Kind == kind
}

func invalidURLError(raw string, cause error) *FetchError {
	err := ErrInvalidBaseURL
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidBaseURL, cause)
	}
	return &FetchError{
		Kind:    KindConnectivity,
		URL:     raw,
		Message: "Invalid API URL",
		Err:     err,
	}
}

func connectError(target string, cause error) *FetchError {
	return &FetchError{
		Kind:    KindConnectivity,
		URL:     target,
		Message: fmt.Sprintf("Unable to connect to API server at %s", target),
		Err:     cause,
	}
}
