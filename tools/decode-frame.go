//go:build ignore

// Decode-frame renders hex-dumped WebSocket frames using the same parser
// the server runs, which makes it useful for checking what a client
// actually sent when a packet capture and the server logs disagree.
//
// Usage:
//
//	go run tools/decode-frame.go <hex>
//	go run tools/decode-frame.go - < frames.txt
//
// With '-' it reads one hex-encoded frame per line from stdin. Hex may
// contain spaces, colons, or newlines; they are stripped before decoding.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: decode-frame <hex>")
		fmt.Println("       decode-frame - < frames.txt")
		os.Exit(1)
	}

	if os.Args[1] == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fmt.Printf("--- line %d ---\n", lineNum)
			decode(line)
		}
		if err := scanner.Err(); err != nil {
			fmt.Printf("Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		return
	}

	decode(strings.Join(os.Args[1:], ""))
}

func decode(input string) {
	raw, err := hex.DecodeString(cleanHex(input))
	if err != nil {
		fmt.Printf("Invalid hex: %v\n", err)
		return
	}

	r := bytes.NewReader(raw)
	for frameNum := 1; r.Len() > 0; frameNum++ {
		frame, err := protocol.ReadFrame(r, 0)
		if err != nil {
			fmt.Printf("Decode failed at frame %d: %v\n", frameNum, err)
			return
		}
		printFrame(frameNum, frame)
	}
}

func printFrame(num int, frame *protocol.Frame) {
	fmt.Printf("Frame %d: %s\n", num, frame)
	fmt.Printf("  FIN:     %v\n", frame.FIN)
	if frame.RSV1 || frame.RSV2 || frame.RSV3 {
		fmt.Printf("  RSV:     %v %v %v (nonzero, no extension negotiated)\n", frame.RSV1, frame.RSV2, frame.RSV3)
	}
	fmt.Printf("  Opcode:  0x%x (%s)\n", frame.Opcode, frame.OpcodeString())
	fmt.Printf("  Masked:  %v\n", frame.Masked)
	if frame.Masked {
		fmt.Printf("  MaskKey: %02x %02x %02x %02x\n", frame.MaskKey[0], frame.MaskKey[1], frame.MaskKey[2], frame.MaskKey[3])
	}
	fmt.Printf("  Length:  %d\n", frame.Length)

	if len(frame.Payload) == 0 {
		fmt.Println()
		return
	}

	switch frame.Opcode {
	case protocol.OpcodeClose:
		code, reason := protocol.ParseClose(frame.Payload)
		fmt.Printf("  Close:   code=%d reason=%q\n", code, reason)
	case protocol.OpcodeText:
		printTextPayload(frame.Payload)
	default:
		fmt.Printf("  Payload: %s\n", hex.EncodeToString(frame.Payload))
		fmt.Printf("  ASCII:   %s\n", toASCII(frame.Payload))
	}
	fmt.Println()
}

func printTextPayload(payload []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "  ", "  "); err == nil {
		fmt.Printf("  JSON:    %s\n", pretty.String())
		return
	}
	fmt.Printf("  Text:    %s\n", string(payload))
}

func cleanHex(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' || r == ',' {
			return -1
		}
		return r
	}, s)
}

func toASCII(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 0x20 && b < 0x7F {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
