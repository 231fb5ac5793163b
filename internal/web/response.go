package web

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Standard status codes used by the API surface
const (
	StatusOK                  = 200
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusInternalServerError = 500
)

// Response is one HTTP response to be serialized onto the wire. Every
// exchange is one-shot: the connection closes after the response, so
// Connection: close is always emitted.
type Response struct {
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// NewResponse creates an empty response with the given status.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(map[string]string),
	}
}

// JSON sets the body to the JSON encoding of v.
func (r *Response) JSON(v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		// Only handler-supplied values reach this; none of them carry
		// unmarshalable types. Degrade to a plain 500 if one ever does.
		r.StatusCode = StatusInternalServerError
		data = []byte(`{"error":"response encoding failed"}`)
	}
	r.Header["Content-Type"] = "application/json"
	r.Body = data
	return r
}

// ErrorResponse builds the structured error body shared by every
// non-2xx answer.
func ErrorResponse(status int, message string) *Response {
	resp := NewResponse(status)
	return resp.JSON(map[string]string{"error": message})
}

// WriteTo serializes the response. Headers are written in sorted order
// so the output is deterministic. A 204 carries no body and no
// Content-Length.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var n int64

	cnt, err := io.WriteString(w, "HTTP/1.1 "+strconv.Itoa(r.StatusCode)+" "+StatusText(r.StatusCode)+"\r\n")
	n += int64(cnt)
	if err != nil {
		return n, err
	}

	headers := make(map[string]string, len(r.Header)+2)
	for name, value := range r.Header {
		headers[name] = value
	}
	headers["Connection"] = "close"
	if r.StatusCode != StatusNoContent {
		headers["Content-Length"] = strconv.Itoa(len(r.Body))
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cnt, err := io.WriteString(w, name+": "+headers[name]+"\r\n")
		n += int64(cnt)
		if err != nil {
			return n, err
		}
	}

	cnt, err = io.WriteString(w, "\r\n")
	n += int64(cnt)
	if err != nil {
		return n, err
	}

	if r.StatusCode != StatusNoContent && len(r.Body) > 0 {
		cnt, err := w.Write(r.Body)
		n += int64(cnt)
		if err != nil {
			return n, err
		}
	}

	return n, nil
}

// StatusText returns the standard reason phrase for the given code.
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusNoContent:
		return "No Content"
	case StatusBadRequest:
		return "Bad Request"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return fmt.Sprintf("Status %d", code)
	}
}
