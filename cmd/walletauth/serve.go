package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/adapters/channel"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/signature"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/bridge"
	"github.com/layer-3/walletauth/internal/config"
	"github.com/layer-3/walletauth/internal/logging"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/proof"
	"github.com/layer-3/walletauth/service"
	transport "github.com/layer-3/walletauth/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the authentication HTTP API",
		Long:  "Starts the authentication HTTP API. Configuration is read from the environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	// released in reverse order once the server stopped
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	signKey, err := loadSigningKey(cfg.JWTKeyHex)
	if err != nil {
		return err
	}
	if cfg.JWTKeyHex == "" {
		logger.Warn("JWT_KEY_HEX not set, tokens will not survive a restart")
	}

	keys, err := loadKeys(cfg.KeysFile)
	if err != nil {
		return err
	}

	var (
		tokenStore ports.Store
		records    ports.RecordStore
		resolver   ports.KeyResolver
		eventPub   ports.EventPublisher = events.NopPublisher{}
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		closers = append(closers, redisClient)

		registry := store.NewRedisKeyRegistry(redisClient)
		for _, key := range keys {
			if err := registry.AddKey(ctx, key); err != nil {
				return err
			}
		}

		tokenStore = store.NewRedisStore(redisClient)
		records = store.NewRedisRecordStore(redisClient)
		resolver = registry
		if cfg.KeyCacheTTL > 0 {
			resolver = store.NewCachedKeyResolver(registry, 0, cfg.KeyCacheTTL)
		}

		if cfg.EventsEnabled {
			publisher, err := redisstream.NewPublisher(
				redisstream.PublisherConfig{
					Client: redisClient,
				},
				watermill.NewStdLogger(false, false),
			)
			if err != nil {
				return fmt.Errorf("failed to create Redis publisher: %w", err)
			}
			closers = append(closers, publisher)
			eventPub = events.NewWatermillPublisher(publisher)
		}
	} else {
		logger.Warn("REDIS_URL not set, using in-memory stores")

		registry, err := store.NewMemoryKeyRegistry(keys...)
		if err != nil {
			return err
		}
		tokenStore = store.NewMemoryStore()
		records = store.NewMemoryRecordStore()
		resolver = registry
	}

	verifier := proof.NewVerifier(
		signature.NewVerifier(resolver),
		proof.WithWindow(cfg.ProofMaxAge, cfg.ProofMaxSkew),
	)

	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey),
		tokenStore,
		records,
		verifier,
		eventPub,
		service.WithLogger(logger),
		service.WithDomainTag(cfg.DomainTag),
		service.WithTTLs(cfg.ChallengeTTL, cfg.AccessTTL, cfg.RefreshTTL),
	)

	var walletService *service.WalletService
	if cfg.WalletURL != "" {
		b := bridge.New(
			channel.NewWebSocketOpener(nil, logger),
			bridge.WithLogger(logger),
		)
		walletService = service.NewWalletService(cfg.WalletURL, b, authService, bridge.Snapshot{
			App: map[string]any{"domainTag": cfg.DomainTag},
		}, logger)
	}

	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           transport.SetupRouter(authService, walletService, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadSigningKey parses the P-256 token signing key, or generates one when
// keyHex is empty.
func loadSigningKey(keyHex string) (*ecdsa.PrivateKey, error) {
	if keyHex == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	if !strings.HasPrefix(keyHex, "0x") {
		keyHex = "0x" + keyHex
	}
	raw, err := hexutil.Decode(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_KEY_HEX: %w", err)
	}
	priv, err := signature.ParseP256PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_KEY_HEX: %w", err)
	}
	return priv, nil
}
