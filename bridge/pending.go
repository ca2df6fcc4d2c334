package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/layer-3/walletauth/core"
)

// Outcome is the settlement state of a pending request
type Outcome int

const (
	OutcomeUnsettled Outcome = iota
	OutcomeApproved
	OutcomeDeclined
	OutcomeClosed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnsettled:
		return "unsettled"
	case OutcomeApproved:
		return "approved"
	case OutcomeDeclined:
		return "declined"
	case OutcomeClosed:
		return "closed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingRequest is the state machine of one in-flight service request.
// It settles at most once; every transition after that is a no-op. It is
// not safe for concurrent use: Bridge.Execute drives it from one goroutine.
type PendingRequest struct {
	id       string
	redirect bool

	outcome Outcome
	data    json.RawMessage
	err     error
}

// NewPendingRequest creates an unsettled request with a fresh id
func NewPendingRequest(redirectMode bool) *PendingRequest {
	return &PendingRequest{
		id:       NewRequestID(),
		redirect: redirectMode,
	}
}

// ID returns the request identifier used to correlate envelopes
func (p *PendingRequest) ID() string {
	return p.id
}

// Outcome returns the current settlement state
func (p *PendingRequest) Outcome() Outcome {
	return p.outcome
}

// Settled reports whether the request reached a terminal state
func (p *PendingRequest) Settled() bool {
	return p.outcome != OutcomeUnsettled
}

// Result returns the approved data or the settlement error
func (p *PendingRequest) Result() (json.RawMessage, error) {
	return p.data, p.err
}

// HandleMessage applies an inbound payload. Malformed and unrelated payloads
// are ignored. closeChannel reports whether the channel must now be closed.
func (p *PendingRequest) HandleMessage(data json.RawMessage) (settled, closeChannel bool) {
	if p.Settled() {
		return false, false
	}

	status, ok := normalize(p.id, data)
	if !ok {
		return false, false
	}

	switch status.Status {
	case StatusApproved:
		p.settle(OutcomeApproved, status.Data, nil)
		return true, !p.redirect
	case StatusDeclined:
		p.settle(OutcomeDeclined, nil, core.Declined(status.Reason))
		return true, true
	default:
		p.settle(OutcomeDeclined, nil, core.Declined(""))
		return true, true
	}
}

// HandleClose settles the request as externally halted
func (p *PendingRequest) HandleClose() bool {
	return p.settle(OutcomeClosed, nil, core.ErrExternallyHalted)
}

// Halt settles the request as externally halted because of cause
func (p *PendingRequest) Halt(cause error) bool {
	if cause == nil {
		return p.HandleClose()
	}
	return p.settle(OutcomeClosed, nil, fmt.Errorf("%w: %w", core.ErrExternallyHalted, cause))
}

// Fail settles the request with err
func (p *PendingRequest) Fail(err error) bool {
	return p.settle(OutcomeFailed, nil, err)
}

func (p *PendingRequest) settle(outcome Outcome, data json.RawMessage, err error) bool {
	if p.Settled() {
		return false
	}
	p.outcome = outcome
	p.data = data
	p.err = err
	return true
}
