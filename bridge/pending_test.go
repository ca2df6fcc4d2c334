package bridge

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	const id = "req-1"

	tests := []struct {
		name    string
		payload string
		ok      bool
		status  Status
	}{
		{"envelope", `{"jsonrpc":"2.0","id":"req-1","result":{"status":"APPROVED"}}`, true, StatusApproved},
		{"status object", `{"status":"DECLINED","reason":"no"}`, true, StatusDeclined},
		{"other id", `{"jsonrpc":"2.0","id":"req-2","result":{"status":"APPROVED"}}`, false, ""},
		{"wrong version", `{"jsonrpc":"1.0","id":"req-1","result":{"status":"APPROVED"}}`, false, ""},
		{"envelope without result", `{"jsonrpc":"2.0","id":"req-1"}`, false, ""},
		{"envelope with bad result", `{"jsonrpc":"2.0","id":"req-1","result":"APPROVED"}`, false, ""},
		{"numeric status", `{"status":1}`, false, ""},
		{"no status", `{"data":{}}`, false, ""},
		{"array", `[{"status":"APPROVED"}]`, false, ""},
		{"null", `null`, false, ""},
		{"garbage", `{`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := normalize(id, json.RawMessage(tt.payload))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.status, status.Status)
			}
		})
	}
}

func TestPendingRequestSettlesOnce(t *testing.T) {
	p := NewPendingRequest(false)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, OutcomeUnsettled, p.Outcome())

	settled, closeChannel := p.HandleMessage(json.RawMessage(`{"status":"APPROVED","data":"x"}`))
	assert.True(t, settled)
	assert.True(t, closeChannel)
	assert.Equal(t, OutcomeApproved, p.Outcome())

	settled, closeChannel = p.HandleMessage(json.RawMessage(`{"status":"DECLINED"}`))
	assert.False(t, settled)
	assert.False(t, closeChannel)
	assert.False(t, p.HandleClose())
	assert.False(t, p.Halt(errors.New("late")))
	assert.False(t, p.Fail(errors.New("late")))

	data, err := p.Result()
	require.NoError(t, err)
	assert.JSONEq(t, `"x"`, string(data))
	assert.Equal(t, "approved", p.Outcome().String())
}

func TestPendingRequestRedirect(t *testing.T) {
	p := NewPendingRequest(true)

	settled, closeChannel := p.HandleMessage(json.RawMessage(`{"status":"APPROVED"}`))
	assert.True(t, settled)
	assert.False(t, closeChannel)

	p = NewPendingRequest(true)
	settled, closeChannel = p.HandleMessage(json.RawMessage(`{"status":"DECLINED"}`))
	assert.True(t, settled)
	assert.True(t, closeChannel)
}

func TestPendingRequestHalt(t *testing.T) {
	cause := errors.New("deadline")
	p := NewPendingRequest(false)
	require.True(t, p.Halt(cause))

	_, err := p.Result()
	assert.ErrorIs(t, err, core.ErrExternallyHalted)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, OutcomeClosed, p.Outcome())

	p = NewPendingRequest(false)
	require.True(t, p.Halt(nil))
	_, err = p.Result()
	assert.Equal(t, core.ErrExternallyHalted, err)
}

func TestRequestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
