// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed      = errors.New("session already ran")
	ErrIntervalAlreadySet = errors.New("heartbeat interval already set")
	ErrReconnectRequested = errors.New("gateway requested reconnect")
	ErrInvalidSession     = errors.New("gateway invalidated the session")
	ErrZombieConnection   = errors.New("heartbeat was not acknowledged")
	ErrUnexpectedFrame    = errors.New("unexpected frame")
)

// TransportError is a failure of the gateway connection itself. It ends the
// session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError means the remote rejected the token.
type AuthError struct {
	// Code is the gateway close code or HTTP status, if there was one.
	Code   int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("authentication failed (%d): %s", e.Code, e.Reason)
	}
	return "authentication failed: " + e.Reason
}

// RequestError is a failed REST call.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
