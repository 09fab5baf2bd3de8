package networks

import "fmt"

// UnknownNetworkError is returned when a network has no registered adapter.
type UnknownNetworkError struct {
	Network string
}

func (e *UnknownNetworkError) Error() string {
	return fmt.Sprintf("unknown network: %s", e.Network)
}

// TransportError reports a failed request to a network's API, including
// non-success status codes.
type TransportError struct {
	Network string
	URL     string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Network, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a response that could not be turned into a count.
type MalformedResponseError struct {
	Network string
	URL     string
	Reason  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response for %s: %s", e.Network, e.URL, e.Reason)
}
