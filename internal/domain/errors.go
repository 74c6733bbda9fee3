package domain

import "errors"

var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownRegion     = errors.New("unknown region")
	ErrMissingAPIKey     = errors.New("places API key is not configured")
	ErrUpstreamPlaces    = errors.New("upstream places failure")
	ErrMalformedResponse = errors.New("places API returned a malformed response")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoWinner          = errors.New("no winner yet")
)
