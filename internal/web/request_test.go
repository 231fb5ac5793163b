package web

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
		verify  func(t *testing.T, req *Request)
	}{
		{
			name: "simple GET",
			raw:  "GET /api/state HTTP/1.1\r\nHost: localhost\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Method != "GET" {
					t.Errorf("method = %q, want GET", req.Method)
				}
				if req.Path != "/api/state" {
					t.Errorf("path = %q, want /api/state", req.Path)
				}
				if req.Header.Get("Host") != "localhost" {
					t.Errorf("host = %q, want localhost", req.Header.Get("Host"))
				}
				if len(req.Body) != 0 {
					t.Errorf("body = %q, want empty", req.Body)
				}
			},
		},
		{
			name: "POST with body",
			raw:  "POST /api/volume HTTP/1.1\r\nContent-Length: 14\r\n\r\n{\"volume\": 42}",
			verify: func(t *testing.T, req *Request) {
				if string(req.Body) != `{"volume": 42}` {
					t.Errorf("body = %q", req.Body)
				}
			},
		},
		{
			name: "percent-decoded path and query",
			raw:  "GET /api/hello%20world?q=a%26b&name=caf%C3%A9 HTTP/1.1\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Path != "/api/hello world" {
					t.Errorf("path = %q", req.Path)
				}
				if req.Query["q"] != "a&b" {
					t.Errorf("q = %q, want a&b", req.Query["q"])
				}
				if req.Query["name"] != "café" {
					t.Errorf("name = %q, want café", req.Query["name"])
				}
			},
		},
		{
			name: "duplicate query keys keep the last value",
			raw:  "GET /api/state?token=first&token=second HTTP/1.1\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Query["token"] != "second" {
					t.Errorf("token = %q, want second", req.Query["token"])
				}
			},
		},
		{
			name: "query key without value",
			raw:  "GET /api/state?token HTTP/1.1\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				value, present := req.Query["token"]
				if !present {
					t.Fatal("bare key should still be present")
				}
				if value != "" {
					t.Errorf("value = %q, want empty", value)
				}
			},
		},
		{
			name: "empty path defaults to root",
			raw:  "GET ?token=x HTTP/1.1\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Path != "/" {
					t.Errorf("path = %q, want /", req.Path)
				}
			},
		},
		{
			name: "header names are case-insensitive",
			raw:  "GET / HTTP/1.1\r\nAUTHORIZATION: Bearer tok\r\ncontent-TYPE: application/json\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Header.Get("authorization") != "Bearer tok" {
					t.Errorf("authorization = %q", req.Header.Get("authorization"))
				}
				if req.Header.Get("Content-Type") != "application/json" {
					t.Errorf("content-type = %q", req.Header.Get("Content-Type"))
				}
			},
		},
		{
			name: "duplicate headers keep the last occurrence",
			raw:  "GET / HTTP/1.1\r\nX-Remote-Token: old\r\nx-remote-token: new\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Header.Get("X-Remote-Token") != "new" {
					t.Errorf("token header = %q, want new", req.Header.Get("X-Remote-Token"))
				}
			},
		},
		{
			name: "header values are trimmed",
			raw:  "GET / HTTP/1.1\r\nHost:   padded.example   \r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Header.Get("Host") != "padded.example" {
					t.Errorf("host = %q", req.Header.Get("Host"))
				}
			},
		},
		{
			name: "header value containing colons splits on the first",
			raw:  "GET / HTTP/1.1\r\nReferer: http://example:8080/x\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if req.Header.Get("Referer") != "http://example:8080/x" {
					t.Errorf("referer = %q", req.Header.Get("Referer"))
				}
			},
		},
		{
			name: "unparsable Content-Length means no body",
			raw:  "POST /api/play HTTP/1.1\r\nContent-Length: banana\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if len(req.Body) != 0 {
					t.Errorf("body = %q, want empty", req.Body)
				}
			},
		},
		{
			name: "negative Content-Length means no body",
			raw:  "POST /api/play HTTP/1.1\r\nContent-Length: -5\r\n\r\n",
			verify: func(t *testing.T, req *Request) {
				if len(req.Body) != 0 {
					t.Errorf("body = %q, want empty", req.Body)
				}
			},
		},
		{
			name:    "request line with two tokens",
			raw:     "GET /api/state\r\n\r\n",
			wantErr: "method, target and version",
		},
		{
			name:    "unrecognized method",
			raw:     "FETCH /api/state HTTP/1.1\r\n\r\n",
			wantErr: "unrecognized method",
		},
		{
			name:    "lowercase method is unrecognized",
			raw:     "get /api/state HTTP/1.1\r\n\r\n",
			wantErr: "unrecognized method",
		},
		{
			name:    "undecodable path escape",
			raw:     "GET /api/%zz HTTP/1.1\r\n\r\n",
			wantErr: "undecodable path",
		},
		{
			name:    "undecodable query escape",
			raw:     "GET /api/state?q=%zz HTTP/1.1\r\n\r\n",
			wantErr: "undecodable query value",
		},
		{
			name:    "header line without colon",
			raw:     "GET / HTTP/1.1\r\nNoColonHere\r\n\r\n",
			wantErr: "has no name",
		},
		{
			name:    "header line with empty name",
			raw:     "GET / HTTP/1.1\r\n: value\r\n\r\n",
			wantErr: "has no name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, consumed, err := ParseRequest([]byte(tt.raw))

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseRequest() = %+v, want error containing %q", req, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if req == nil {
				t.Fatal("ParseRequest() returned no request for complete input")
			}
			if consumed != len(tt.raw) {
				t.Errorf("consumed = %d, want %d", consumed, len(tt.raw))
			}
			if tt.verify != nil {
				tt.verify(t, req)
			}
		})
	}
}

// Feeding the parser every prefix of a valid request must report
// "incomplete" without error until the full request is buffered.
func TestParseRequest_IncrementalDelivery(t *testing.T) {
	raw := []byte("POST /api/volume?token=tok HTTP/1.1\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 14\r\n" +
		"\r\n" +
		`{"volume": 42}`)

	for i := 0; i < len(raw); i++ {
		req, consumed, err := ParseRequest(raw[:i])
		if err != nil {
			t.Fatalf("prefix of %d bytes: unexpected error %v", i, err)
		}
		if req != nil || consumed != 0 {
			t.Fatalf("prefix of %d bytes: parser returned early (consumed=%d)", i, consumed)
		}
	}

	req, consumed, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req == nil {
		t.Fatal("full request should parse")
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
	if string(req.Body) != `{"volume": 42}` {
		t.Errorf("body = %q", req.Body)
	}
}

// The parser must consume exactly the header block plus the declared
// body, leaving any trailing buffered bytes untouched.
func TestParseRequest_ConsumesExactlyOneRequest(t *testing.T) {
	request := "POST /api/volume HTTP/1.1\r\nContent-Length: 14\r\n\r\n" + `{"volume": 42}`
	trailing := "GET /api/state HTTP/1.1\r\n\r\n"
	buf := []byte(request + trailing)

	req, consumed, err := ParseRequest(buf)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if consumed != len(request) {
		t.Fatalf("consumed = %d, want %d", consumed, len(request))
	}
	if string(req.Body) != `{"volume": 42}` {
		t.Errorf("body = %q, want the declared 14 bytes only", req.Body)
	}
	if !bytes.Equal(buf[consumed:], []byte(trailing)) {
		t.Errorf("trailing bytes disturbed: %q", buf[consumed:])
	}

	// The remainder parses as its own request.
	next, nextConsumed, err := ParseRequest(buf[consumed:])
	if err != nil {
		t.Fatalf("trailing request error = %v", err)
	}
	if next == nil || next.Path != "/api/state" {
		t.Fatalf("trailing request = %+v", next)
	}
	if nextConsumed != len(trailing) {
		t.Errorf("trailing consumed = %d, want %d", nextConsumed, len(trailing))
	}
}

func TestParseRequest_BodyIsCopied(t *testing.T) {
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")

	req, _, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	raw[len(raw)-1] = 'X'
	if string(req.Body) != "hello" {
		t.Errorf("body aliases the caller's buffer: %q", req.Body)
	}
}

func BenchmarkParseRequest(b *testing.B) {
	raw := []byte("POST /api/volume?token=abc123 HTTP/1.1\r\n" +
		"Host: 192.168.1.20:10767\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 14\r\n" +
		"\r\n" +
		`{"volume": 42}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := ParseRequest(raw); err != nil {
			b.Fatal(err)
		}
	}
}
