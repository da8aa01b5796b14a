package api

import "fmt"

// Error kinds, one per failure class callers may want to branch on.
const (
	KindTransport    = "transport"
	KindBadRequest   = "bad_request"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindServer       = "server"
)

// Error is returned for every failed request. Status is zero for transport
// failures that never produced an HTTP response.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.Message)
}

func kindForStatus(status int) string {
	switch {
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 409:
		return KindConflict
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}
