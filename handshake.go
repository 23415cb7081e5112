package snapframe

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"
)

const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ComputeAcceptKey returns the Sec-WebSocket-Accept value for a client's Sec-WebSocket-Key.
func ComputeAcceptKey(key string) string {
	hashedKey := sha1.Sum([]byte(key + GUID))
	return base64.StdEncoding.EncodeToString(hashedKey[:])
}

// appendHandshake appends the 101 response written by the send task before any frame.
// The accept header is only added when the client's key is known.
func appendHandshake(p []byte, key string, hasKey bool) []byte {
	p = append(p, "HTTP/1.1 101 Switching Protocols\r\n"...)
	p = append(p, "Upgrade: websocket\r\n"...)
	p = append(p, "Connection: Upgrade\r\n"...)
	if hasKey {
		p = append(p, "Sec-Websocket-Accept: "...)
		p = append(p, ComputeAcceptKey(key)...)
		p = append(p, "\r\n"...)
	}
	p = append(p, "\r\n"...)

	return p
}

func validateConnectionHeader(r *http.Request) error {
	rawHeader := r.Header.Get("Connection")
	if rawHeader == "" {
		return ErrMissingConnectionHeader
	}
	rawHeader = strings.ToLower(strings.TrimSpace(rawHeader))
	iter := strings.SplitSeq(rawHeader, ",")

	for header := range iter {
		if strings.TrimSpace(header) == "upgrade" {
			return nil
		}
	}

	return ErrInvalidConnectionHeader
}

func validateUpgradeHeader(r *http.Request) error {
	rawHeader := r.Header.Get("Upgrade")
	if rawHeader == "" {
		return ErrMissingUpgradeHeader
	}
	rawHeader = strings.ToLower(strings.TrimSpace(rawHeader))
	iter := strings.SplitSeq(rawHeader, ",")

	for header := range iter {
		if strings.TrimSpace(header) == "websocket" {
			return nil
		}
	}

	return ErrInvalidUpgradeHeader
}

func validateVersionHeader(r *http.Request) error {
	header := r.Header.Get("Sec-WebSocket-Version")
	if header == "" {
		return ErrMissingVersionHeader
	} else if strings.TrimSpace(header) != "13" {
		return ErrInvalidVersionHeader
	}

	return nil
}

func validateSecKeyHeader(r *http.Request) error {
	header := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if header == "" {
		return ErrMissingSecKey
	}

	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil || len(decoded) != 16 {
		return ErrInvalidSecKey
	}

	return nil
}
