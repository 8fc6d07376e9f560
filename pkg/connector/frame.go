// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/json"
)

// Opcode identifies the kind of a gateway frame.
type Opcode int

const (
	OpDispatch       Opcode = 0
	OpHeartbeat      Opcode = 1
	OpIdentify       Opcode = 2
	OpReconnect      Opcode = 7
	OpInvalidSession Opcode = 9
	OpHello          Opcode = 10
	OpHeartbeatAck   Opcode = 11
)

// CloseAuthenticationFailed is the close code sent for a rejected token.
const CloseAuthenticationFailed = 4004

// Dispatch event tags the session acts on.
const (
	EventReady         = "READY"
	EventMessageCreate = "MESSAGE_CREATE"
)

// Frame is a decoded inbound gateway frame.
type Frame struct {
	Op   Opcode          `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s"`
	Type string          `json:"t"`
}

// outFrame is an outbound frame. Data is always serialized, so a nil
// pointer becomes null.
type outFrame struct {
	Op   Opcode `json:"op"`
	Data any    `json:"d"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Properties identifyProperties `json:"properties"`
	Intents    int                `json:"intents,omitempty"`
}
