package models

import (
	"errors"
	"fmt"
)

// ErrUnknownSite is returned when a site identifier has no selector schema.
var ErrUnknownSite = errors.New("unknown site")

// SelectorTimeoutError means the card selector never appeared on the page.
type SelectorTimeoutError struct {
	Selector string
	Err      error
}

func (e *SelectorTimeoutError) Error() string {
	return fmt.Sprintf("selector %q not found: %v", e.Selector, e.Err)
}

func (e *SelectorTimeoutError) Unwrap() error { return e.Err }

// NavigationError wraps a failed or timed out page load for one site.
type NavigationError struct {
	Site string
	URL  string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s (%s): %v", e.Site, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// NotAnImageError means the image response did not declare an image content type.
type NotAnImageError struct {
	URL         string
	ContentType string
}

func (e *NotAnImageError) Error() string {
	if e.ContentType == "" {
		return fmt.Sprintf("%s: missing content type", e.URL)
	}
	return fmt.Sprintf("%s: content type %q is not an image", e.URL, e.ContentType)
}

// NetworkError wraps a failed image download.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("download %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FatalRunError aborts a whole command: nothing more is delivered after it.
type FatalRunError struct {
	Stage string
	Err   error
}

func (e *FatalRunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalRunError) Unwrap() error { return e.Err }
