package icy

import (
	"fmt"

	"github.com/pkg/errors"
)

// Lookup failures fall into one of these categories. Wrapped errors keep the
// underlying cause, so both the category and the cause match with errors.Is.
var (
	ErrIntervalUnavailable = errors.New(`failed to get headers from server response or "icy-metaint" header value`)
	ErrTransport           = errors.New("failed to get server response")
	ErrEmptyMetadata       = errors.New("no metadata in the current interval")
	ErrMalformedMetadata   = errors.New("failed to get song info")
)

// errShortRead is returned when fewer bytes arrived than a lookup needs.
var errShortRead = errors.New("short read")

func transportError(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func intervalError(err error) error {
	if err == nil {
		return ErrIntervalUnavailable
	}
	return fmt.Errorf("%w: %w", ErrIntervalUnavailable, err)
}
