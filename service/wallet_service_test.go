package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/walletauth/bridge"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// announcement is the part of a ready response the scripted wallet reads
type announcement struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Body      json.RawMessage `json:"body"`
}

// scriptedWallet answers every current announcement with respond, or never
// when respond is nil
type scriptedWallet struct {
	respond func(a announcement) any
	closed  atomic.Int32
}

type scriptedChannel struct {
	wallet   *scriptedWallet
	handlers ports.ChannelHandlers
}

func (w *scriptedWallet) Open(ctx context.Context, endpoint string, handlers ports.ChannelHandlers) (ports.Channel, error) {
	ch := &scriptedChannel{wallet: w, handlers: handlers}
	go handlers.OnReady()
	return ch, nil
}

func (c *scriptedChannel) Send(ctx context.Context, msg any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var a announcement
	if err := json.Unmarshal(raw, &a); err != nil {
		return err
	}
	if a.Type != bridge.TagReadyResponse || c.wallet.respond == nil {
		return nil
	}

	reply, err := json.Marshal(c.wallet.respond(a))
	if err != nil {
		return err
	}
	go c.handlers.OnMessage(reply)
	return nil
}

func (c *scriptedChannel) Close() error {
	c.wallet.closed.Add(1)
	go c.handlers.OnClose()
	return nil
}

func approve(requestID string, data any) any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      requestID,
		"result":  map[string]any{"status": "APPROVED", "data": data},
	}
}

func newWalletService(f *fixture, respond func(a announcement) any) *WalletService {
	w, _ := newScriptedWalletService(f, respond)
	return w
}

func newScriptedWalletService(f *fixture, respond func(a announcement) any) (*WalletService, *scriptedWallet) {
	wallet := &scriptedWallet{respond: respond}
	return NewWalletService("wss://wallet.example/authn", bridge.New(wallet), f.service, bridge.Snapshot{}, nil), wallet
}

func withTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWalletAuthenticate(t *testing.T) {
	f := newFixture(t)

	w := newWalletService(f, func(a announcement) any {
		var body accountProofBody
		require.NoError(t, json.Unmarshal(a.Body, &body))
		assert.Equal(t, bodyTypeAccountProof, body.Type)
		assert.Equal(t, testDomainTag, body.DomainTag)

		return approve(a.RequestID, f.proof(t, time.Now().UnixMilli()))
	})

	result, err := w.Authenticate(withTimeout(t), w.Service("", nil))
	require.NoError(t, err)
	assert.Equal(t, testAddress, result.Address)
	assert.NotEmpty(t, result.AccessToken)
}

func TestWalletAuthenticateClosesRedirectChannel(t *testing.T) {
	for _, method := range []string{bridge.MethodPopup, bridge.MethodRedirect} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			w, wallet := newScriptedWalletService(f, func(a announcement) any {
				return approve(a.RequestID, f.proof(t, time.Now().UnixMilli()))
			})

			_, err := w.Authenticate(withTimeout(t), w.Service(method, nil))
			require.NoError(t, err)
			assert.Equal(t, int32(1), wallet.closed.Load())
		})
	}
}

func TestWalletAuthenticateDeclined(t *testing.T) {
	f := newFixture(t)

	w := newWalletService(f, func(a announcement) any {
		return map[string]any{"status": "DECLINED", "reason": "User rejected"}
	})

	_, err := w.Authenticate(withTimeout(t), w.Service(bridge.MethodPopup, nil))
	var declined *core.DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "User rejected", declined.Reason)
}

func TestWalletAuthenticateMalformedProof(t *testing.T) {
	f := newFixture(t)

	tests := map[string]any{
		"wrong shape":   []int{1},
		"no address":    map[string]any{"timestamp": 1},
		"no data":       nil,
		"wrong address": map[string]any{"address": "xyz", "timestamp": 1},
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			w := newWalletService(f, func(a announcement) any {
				return approve(a.RequestID, data)
			})

			_, err := w.Authenticate(withTimeout(t), w.Service("", nil))
			assert.Error(t, err)
			if name != "wrong address" {
				assert.ErrorIs(t, err, core.ErrMalformedProof)
			}
		})
	}
}

func TestWalletAuthenticateHalted(t *testing.T) {
	f := newFixture(t)

	// the wallet never answers
	w := NewWalletService("wss://wallet.example/authn", bridge.New(&scriptedWallet{}), f.service, bridge.Snapshot{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := w.Authenticate(ctx, w.Service("", nil))
	assert.ErrorIs(t, err, core.ErrExternallyHalted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWalletRequestSignatures(t *testing.T) {
	f := newFixture(t)
	message := []byte("sign me")

	sig, err := f.signer.Sign(message)
	require.NoError(t, err)

	tests := map[string]any{
		"single": sig,
		"list":   []core.CompositeSignature{sig},
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			w := newWalletService(f, func(a announcement) any {
				var body signableBody
				require.NoError(t, json.Unmarshal(a.Body, &body))
				assert.Equal(t, hexutil.Encode(message), body.Message)
				return approve(a.RequestID, data)
			})

			sigs, err := w.RequestSignatures(withTimeout(t), w.Service("", nil), message)
			require.NoError(t, err)
			assert.Equal(t, []core.CompositeSignature{sig}, sigs)
		})
	}
}

func TestWalletRequestSignaturesEmpty(t *testing.T) {
	f := newFixture(t)
	w := newWalletService(f, func(a announcement) any {
		return approve(a.RequestID, []core.CompositeSignature{})
	})

	_, err := w.RequestSignatures(withTimeout(t), w.Service("", nil), []byte("x"))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestWalletServiceRedirectMode(t *testing.T) {
	w := NewWalletService("wss://wallet", nil, nil, bridge.Snapshot{}, nil)

	assert.True(t, w.request(w.Service(bridge.MethodRedirect, nil), nil).RedirectMode)
	assert.False(t, w.request(w.Service(bridge.MethodPopup, nil), nil).RedirectMode)
	assert.Equal(t, bridge.MethodPopup, w.Service("", nil).Method)
	assert.Equal(t, "wss://wallet", w.Service("", nil).Endpoint)
}
