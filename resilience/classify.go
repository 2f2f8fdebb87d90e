package resilience

import (
	"errors"
	"net/http"
	"strings"
)

// Class is the outcome of classifying a provider failure.
type Class int

const (
	// ClassFatal failures are returned to the caller without rotating.
	ClassFatal Class = iota
	// ClassRateLimited failures put the key into cooldown and are retried.
	ClassRateLimited
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Classifier maps a failure to a Class.
type Classifier func(err error) Class

// ClassifyMessage treats an error as rate limited when its message contains
// "429" or "resource_exhausted", ignoring case. Everything else is fatal.
//
// Provider errors are not uniformly typed across network, SDK and HTTP status
// paths, so the rendered message is the only signal common to all of them.
func ClassifyMessage(err error) Class {
	if err == nil {
		return ClassFatal
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") {
		return ClassRateLimited
	}
	return ClassFatal
}

// httpStatuser is implemented by provider errors that carry an HTTP status.
type httpStatuser interface {
	HTTPStatus() int
}

// ClassifyStatus prefers a structured HTTP status when the error chain carries
// one and falls back to ClassifyMessage otherwise.
func ClassifyStatus(err error) Class {
	var se httpStatuser
	if errors.As(err, &se) {
		if se.HTTPStatus() == http.StatusTooManyRequests {
			return ClassRateLimited
		}
		return ClassFatal
	}
	return ClassifyMessage(err)
}
