package web

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseError describes malformed request bytes. The server answers every
// parse error with a structured 400 before closing the connection.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "malformed request: " + e.Reason
}

// Header holds request headers keyed by lower-cased name. When a client
// repeats a header, the last occurrence wins.
type Header map[string]string

// Get returns the value for a header name, case-insensitively.
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Request is one parsed HTTP request.
type Request struct {
	Method     string
	Path       string            // percent-decoded, query string stripped
	Query      map[string]string // percent-decoded, last value wins
	Proto      string
	Header     Header
	Body       []byte
	RemoteAddr string
}

// ParseRequest attempts to parse one request from the front of buf.
//
// The caller accumulates reads into buf and retries after each one. A
// (nil, 0, nil) return means the bytes so far are a valid prefix and
// more input is needed; an error means the input can never become a
// valid request. On success the consumed count covers the header block
// plus the declared body, leaving any pipelined bytes untouched.
func ParseRequest(buf []byte) (*Request, int, error) {
	end := bytes.Index(buf, []byte("\r\n\r\n"))
	if end < 0 {
		return nil, 0, nil
	}

	lines := strings.Split(string(buf[:end]), "\r\n")
	req, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, 0, err
	}

	req.Header = make(Header, len(lines)-1)
	for _, line := range lines[1:] {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, 0, &ParseError{Reason: fmt.Sprintf("header line %q has no name", line)}
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		if name == "" {
			return nil, 0, &ParseError{Reason: fmt.Sprintf("header line %q has no name", line)}
		}
		req.Header[name] = strings.TrimSpace(line[colon+1:])
	}

	// An absent or unparsable Content-Length means no body.
	bodyLen := 0
	if cl := req.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n > 0 {
			bodyLen = n
		}
	}

	bodyStart := end + 4
	if len(buf) < bodyStart+bodyLen {
		// Headers are complete but the body is still arriving.
		return nil, 0, nil
	}
	if bodyLen > 0 {
		req.Body = make([]byte, bodyLen)
		copy(req.Body, buf[bodyStart:bodyStart+bodyLen])
	}

	return req, bodyStart + bodyLen, nil
}

// knownMethods is the set of request methods the framer recognizes.
// Whether a method is acceptable on a given path is the router's call.
var knownMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"CONNECT": true,
	"OPTIONS": true,
	"TRACE":   true,
	"PATCH":   true,
}

// parseRequestLine splits "METHOD /target HTTP/1.1" into its parts and
// decodes the target. Fewer than three whitespace-delimited tokens or
// an unrecognized method is malformed.
func parseRequestLine(line string) (*Request, error) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return nil, &ParseError{Reason: fmt.Sprintf("request line %q needs method, target and version", line)}
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if !knownMethods[method] {
		return nil, &ParseError{Reason: "unrecognized method: " + method}
	}

	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, &ParseError{Reason: "undecodable path: " + rawPath}
	}
	if path == "" {
		path = "/"
	}
	query, err := parseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Proto:  proto,
	}, nil
}

// parseQuery decodes key=value pairs. Duplicate keys keep the last
// value; a key with no '=' maps to the empty string.
func parseQuery(raw string) (map[string]string, error) {
	query := make(map[string]string)
	if raw == "" {
		return query, nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, &ParseError{Reason: "undecodable query key: " + rawKey}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, &ParseError{Reason: "undecodable query value: " + rawValue}
		}
		query[key] = value
	}
	return query, nil
}
