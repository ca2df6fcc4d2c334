package bridge

import (
	"encoding/json"
	"fmt"
)

const (
	// TagReady is sent by the wallet once its view can receive the request
	TagReady = "VIEW:READY"
	// TagClose is sent by the wallet when its view is dismissed
	TagClose = "VIEW:CLOSE"
	// TagReadyResponse announces the request to current wallets
	TagReadyResponse = "VIEW:READY:RESPONSE"
	// TagLegacyReadyResponse announces the request to wallets listening on the frame tag
	TagLegacyReadyResponse = "FRAME:READY:RESPONSE"
)

const (
	// MethodPopup services answer in the window they were opened in
	MethodPopup = "POP/RPC"
	// MethodRedirect services continue the flow through a redirect after approval
	MethodRedirect = "TAB/RPC"
)

// Service describes the wallet service being invoked
type Service struct {
	Type     string          `json:"type"`
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method,omitempty"`
	Params   map[string]any  `json:"params,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Snapshot is the application and service configuration sent with a
// request. It is captured by the caller, never read from process state.
type Snapshot struct {
	App      map[string]any `json:"app,omitempty"`
	Services map[string]any `json:"services,omitempty"`
	Client   map[string]any `json:"client,omitempty"`
}

// Request is one operation to perform through a wallet service
type Request struct {
	Service Service
	Body    any
	Config  Snapshot

	// RedirectMode leaves the channel open on approval because the flow
	// continues through a redirect.
	RedirectMode bool
}

// Announcement builds one message sent to the wallet when it signals ready
type Announcement func(requestID string, req *Request) (any, error)

// DefaultAnnouncements are sent in order on every ready signal
var DefaultAnnouncements = []Announcement{
	ReadyResponse,
	LegacyReadyResponse,
}

type serviceContext struct {
	Params map[string]any  `json:"params,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ReadyResponse is the current announcement shape
func ReadyResponse(requestID string, req *Request) (any, error) {
	return map[string]any{
		"type":      TagReadyResponse,
		"requestId": requestID,
		"body":      req.Body,
		"service": serviceContext{
			Params: req.Service.Params,
			Data:   req.Service.Data,
		},
		"config": req.Config,
	}, nil
}

// LegacyReadyResponse spreads the body fields into the top level message,
// as older wallets expect.
func LegacyReadyResponse(requestID string, req *Request) (any, error) {
	msg := map[string]any{}

	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		if err := json.Unmarshal(encoded, &msg); err != nil || msg == nil {
			msg = map[string]any{"body": req.Body}
		}
	}

	msg["type"] = TagLegacyReadyResponse
	msg["requestId"] = requestID
	msg["deprecated"] = map[string]any{
		"message": TagLegacyReadyResponse + " is deprecated, listen for " + TagReadyResponse,
	}
	return msg, nil
}
