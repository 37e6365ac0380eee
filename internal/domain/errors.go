package domain

import "errors"

var (
	// Configuration
	ErrAPIKeyMissing    = errors.New("api key missing")
	ErrAssistantMissing = errors.New("assistant or prompt id missing")
	ErrSessionNotFound  = errors.New("session not found")
	ErrTurnInProgress   = errors.New("turn already in progress")
	ErrEmptyPrompt      = errors.New("empty prompt")
	ErrUploadTooLarge   = errors.New("upload too large")

	// Authorization
	ErrTokenMissing     = errors.New("access token missing")
	ErrTokenUnknown     = errors.New("access token unknown")
	ErrTokenExpired     = errors.New("access token expired")
	ErrTokenNotYetValid = errors.New("access token not yet valid")

	// Format
	ErrInvalidDate = errors.New("invalid date")

	// External API
	ErrResourceNotFound = errors.New("external resource not found")
	ErrUnauthorized     = errors.New("external api unauthorized")
	ErrRateLimited      = errors.New("external api rate limited")
	ErrUnavailable      = errors.New("external api unavailable")
	ErrEmptyReply       = errors.New("external api returned no reply")
)
