package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/walletauth/bridge"
	"github.com/layer-3/walletauth/core"
	"go.uber.org/zap"
)

const (
	bodyTypeAccountProof = "AccountProofRequest"
	bodyTypeSignable     = "SignableMessage"
)

// accountProofBody asks the wallet for an account proof under domainTag
type accountProofBody struct {
	Type      string `json:"type"`
	DomainTag string `json:"domainTag,omitempty"`
}

// signableBody asks the wallet to sign a message
type signableBody struct {
	Type    string `json:"type"`
	Message string `json:"message"` // hex encoded
}

// WalletService obtains proofs and signatures from wallet services
type WalletService struct {
	endpoint string
	bridge   *bridge.Bridge
	auth     *AuthService
	snapshot bridge.Snapshot
	logger   *zap.Logger
}

// NewWalletService creates a wallet service for the wallet at endpoint.
// snapshot is the application configuration every request carries to the
// wallet.
func NewWalletService(endpoint string, b *bridge.Bridge, auth *AuthService, snapshot bridge.Snapshot, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		endpoint: endpoint,
		bridge:   b,
		auth:     auth,
		snapshot: snapshot,
		logger:   logger,
	}
}

// Service describes the configured wallet invoked with method and params
func (w *WalletService) Service(method string, params map[string]any) bridge.Service {
	if method == "" {
		method = bridge.MethodPopup
	}
	return bridge.Service{
		Type:     "authn",
		Endpoint: w.endpoint,
		Method:   method,
		Params:   params,
	}
}

// Authenticate requests an account proof from svc and logs the account in
// with it. Declines and halted channels are returned unchanged. A channel
// left open by a redirect service is closed before Authenticate returns.
func (w *WalletService) Authenticate(ctx context.Context, svc bridge.Service) (*core.AuthResult, error) {
	data, release, err := w.bridge.ExecuteRedirect(ctx, w.request(svc, accountProofBody{
		Type:      bodyTypeAccountProof,
		DomainTag: w.auth.DomainTag(),
	}))
	defer release()
	if err != nil {
		return nil, err
	}

	var p core.AccountProof
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedProof, err)
	}
	if p.Address == "" {
		return nil, core.ErrMalformedProof
	}

	result, err := w.auth.AuthenticateProof(ctx, &p)
	if err != nil {
		w.logger.Info("account proof rejected", zap.String("address", p.Address), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// RequestSignatures asks svc to sign message and returns the composite
// signatures it approved with. The wallet may answer with one signature or
// a list of them.
func (w *WalletService) RequestSignatures(ctx context.Context, svc bridge.Service, message []byte) ([]core.CompositeSignature, error) {
	data, release, err := w.bridge.ExecuteRedirect(ctx, w.request(svc, signableBody{
		Type:    bodyTypeSignable,
		Message: hexutil.Encode(message),
	}))
	defer release()
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	var sigs []core.CompositeSignature
	if len(data) > 0 && data[0] == '{' {
		var sig core.CompositeSignature
		if err := json.Unmarshal(data, &sig); err != nil {
			return nil, fmt.Errorf("malformed signature: %w", err)
		}
		sigs = append(sigs, sig)
	} else if err := json.Unmarshal(data, &sigs); err != nil {
		return nil, fmt.Errorf("malformed signatures: %w", err)
	}

	if len(sigs) == 0 {
		return nil, fmt.Errorf("wallet approved without signatures: %w", core.ErrInvalidSignature)
	}
	return sigs, nil
}

func (w *WalletService) request(svc bridge.Service, body any) bridge.Request {
	return bridge.Request{
		Service:      svc,
		Body:         body,
		Config:       w.snapshot,
		RedirectMode: svc.Method == bridge.MethodRedirect,
	}
}
