package icy

import (
	"fmt"
	"strings"
)

// blockUnit is the size multiplier of the length byte that prefixes a
// metadata block.
const blockUnit = 16

// DecodeBlock returns the metadata block found at interval in body. The
// slice starts at the length byte and spans 16 times its value. A zero length
// byte yields ErrEmptyMetadata; a body too short to hold the block is a
// transport failure.
func DecodeBlock(body []byte, interval int) ([]byte, error) {
	if interval < 0 || interval >= len(body) {
		return nil, transportError(fmt.Errorf("%w: have %d bytes, metadata at %d", errShortRead, len(body), interval))
	}

	length := int(body[interval]) * blockUnit
	if length == 0 {
		return nil, ErrEmptyMetadata
	}

	end := interval + length
	if end > len(body) {
		return nil, transportError(fmt.Errorf("%w: have %d bytes, metadata ends at %d", errShortRead, len(body), end))
	}

	return body[interval:end], nil
}

const (
	titleStart = "='"
	titleEnd   = "';"
)

// ExtractTitle returns the text between the first "='" and the first "';"
// after it. The boolean is false when either marker is missing, which is
// different from an empty title.
func ExtractTitle(metadata string) (string, bool) {
	start := strings.Index(metadata, titleStart)
	if start < 0 {
		return "", false
	}
	rest := metadata[start+len(titleStart):]

	end := strings.Index(rest, titleEnd)
	if end < 0 {
		return "", false
	}

	return rest[:end], true
}
