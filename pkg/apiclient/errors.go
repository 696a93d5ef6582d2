package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidBaseURL  = errors.New("apiclient.invalid_base_url")
	ErrRequestFailed   = errors.New("apiclient.request_failed")
	ErrEncodeRequest   = errors.New("apiclient.encode_request")
	ErrDecodeResponse  = errors.New("apiclient.decode_response")
	ErrMissingTokenSrc = errors.New("apiclient.missing_token_store")

	ErrResponseTooLarge = errors.New("apiclient.response_too_large")
)

// UnknownStatus is reported when a failure carries no HTTP status, such as a
// network error.
const UnknownStatus = "UNKNOWN"

// Error is a non-2xx response. Body fields the server did not send stay
// zero.
type Error struct {
	StatusCode int
	// Detail is the "detail" field.
	Detail string
	// Message is the "error" field.
	Message string
	Code    string
	// Fields holds per-field validation messages.
	Fields map[string][]string
	Body   []byte
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, msg)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}

// ErrorStatus returns the response status as text, or UnknownStatus when err
// is not an API response error.
func ErrorStatus(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return strconv.Itoa(apiErr.StatusCode)
	}
	return UnknownStatus
}

// ErrorMessage returns the server's "detail", then its "error", then
// fallback.
func ErrorMessage(err error, fallback string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if apiErr.Detail != "" {
		return apiErr.Detail
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// parseError builds an Error from a response body. Bodies that are not JSON
// objects, or fields of unexpected types, are ignored.
func parseError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: body}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return e
	}

	e.Detail = stringField(doc["detail"])
	e.Message = stringField(doc["error"])
	e.Code = stringField(doc["code"])

	if raw, ok := doc["fields"]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err == nil {
			e.Fields = make(map[string][]string, len(fields))
			for name, v := range fields {
				if msgs := stringsField(v); len(msgs) > 0 {
					e.Fields[name] = msgs
				}
			}
		}
	}
	return e
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// Some endpoints send {"detail": ["..."]}.
	if list := stringsField(raw); len(list) > 0 {
		return strings.Join(list, " ")
	}
	return ""
}

func stringsField(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}
