package types

// BodyEncoding describes how a request body is put on the wire.
type BodyEncoding int

const (
	BodyNone BodyEncoding = iota
	BodyJSON
)

// Request is implemented by every typed API request. The transport uses it to
// learn where and how to send the value; the request itself performs no I/O.
type Request interface {
	// Method is the HTTP method, e.g. http.MethodPost.
	Method() string

	// Endpoint is the path relative to the API base URL, without a leading slash.
	Endpoint() string

	// BodyEncoding selects how the request value is serialized.
	BodyEncoding() BodyEncoding
}
