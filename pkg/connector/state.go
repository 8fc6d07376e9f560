// Copyright 2024-2026 Aiku AI

package connector

// SessionState is the lifecycle position of a gateway session.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateReady
	StateRunning
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateIdentifying:
		return "identifying"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
