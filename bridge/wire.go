package bridge

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// Status is the status value of a wallet response
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
)

// JSONRPCVersion is the only accepted envelope version
const JSONRPCVersion = "2.0"

// StatusObject is the polling-status response shape
type StatusObject struct {
	Status Status          `json:"status"`
	Reason string          `json:"reason,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Envelope is the correlated JSON-RPC response shape
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result"`
}

// NewRequestID returns a fresh opaque request identifier
func NewRequestID() string {
	return uuid.NewString()
}

// normalize returns the status object carried by an inbound payload.
// Payloads with a jsonrpc field are envelopes and must carry requestID;
// anything else is read as a bare status object. ok is false for payloads
// that are malformed or belong to another request.
func normalize(requestID string, data json.RawMessage) (status *StatusObject, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, false
	}

	if _, isEnvelope := fields["jsonrpc"]; isEnvelope {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, false
		}
		if env.JSONRPC != JSONRPCVersion || env.ID != requestID {
			return nil, false
		}
		return parseStatus(env.Result)
	}

	return parseStatus(data)
}

// parseStatus accepts a JSON object with a string status field
func parseStatus(data json.RawMessage) (*StatusObject, bool) {
	var raw struct {
		Status *string         `json:"status"`
		Reason string          `json:"reason"`
		Data   json.RawMessage `json:"data"`
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.Status == nil {
		return nil, false
	}

	return &StatusObject{
		Status: Status(*raw.Status),
		Reason: raw.Reason,
		Data:   raw.Data,
	}, true
}
