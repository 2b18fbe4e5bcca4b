package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/cart"
	"github.com/kraal-market/client/internal/checkout"
	"github.com/kraal-market/client/internal/fake"
	"github.com/kraal-market/client/internal/platform/config"
	"github.com/kraal-market/client/internal/platform/observability"
	"github.com/kraal-market/client/internal/session"
	"github.com/kraal-market/client/internal/storage"
)

type appOptions struct {
	Demo       bool
	ConfigFile string
}

// app carries the wired dependency graph every command runs against.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	bridge  storage.Bridge
	client  *api.Client
	session *session.Store
	cart    *cart.Store
	flow    *checkout.Flow
	demo    *demoBackend
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("initialise logger: %w", err)
	}
	logger := baseLogger.Named("kraal")

	loadOpts := make([]config.Option, 0, 2)
	if opts.ConfigFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(opts.ConfigFile))
	}

	var demo *demoBackend
	if opts.Demo {
		demo, err = startDemoBackend(logger)
		if err != nil {
			return nil, fmt.Errorf("start demo backend: %w", err)
		}
		// Demo runs are hermetic: loopback backend, throwaway state dir.
		loadOpts = append(loadOpts, config.WithEnvMap(map[string]string{
			"KRAAL_API_BASE_URL": demo.url,
			"KRAAL_STATE_DIR":    demo.stateDir,
		}))
	}

	cfg, err := config.Load(loadOpts...)
	if err != nil {
		if demo != nil {
			demo.Close(logger)
		}
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("configuration incomplete (set KRAAL_API_BASE_URL or pass --config): %w", err)
		}
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	bridge, err := storage.NewFileStore(cfg.State.Dir)
	if err != nil {
		if demo != nil {
			demo.Close(logger)
		}
		return nil, fmt.Errorf("open state directory %s: %w", cfg.State.Dir, err)
	}

	tokens := api.NewTokenStore(bridge)
	client, err := api.NewClient(api.ClientDeps{
		BaseURL:    cfg.API.BaseURL,
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Logger:     logger.Named("api"),
		Retry: api.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		UserAgent: cfg.API.UserAgent,
	})
	if err != nil {
		if demo != nil {
			demo.Close(logger)
		}
		return nil, fmt.Errorf("initialise api client: %w", err)
	}

	// The cart mirrors the account cart once credentials exist on the
	// bridge, the guest cart otherwise.
	cartKey := storage.KeyGuestCart
	if _, ok := tokens.AccessToken(); ok {
		cartKey = storage.KeyCart
	}
	cartStore, err := cart.NewStore(cart.StoreDeps{
		Bridge: bridge,
		Key:    cartKey,
		Logger: logger.Named("cart"),
	})
	if err != nil {
		if demo != nil {
			demo.Close(logger)
		}
		return nil, fmt.Errorf("initialise cart store: %w", err)
	}

	sessionStore, err := session.NewStore(session.StoreDeps{
		Client:          client,
		Bridge:          bridge,
		Cart:            cartStore,
		Logger:          logger.Named("session"),
		RecheckInterval: cfg.Session.RecheckInterval,
	})
	if err != nil {
		if demo != nil {
			demo.Close(logger)
		}
		return nil, fmt.Errorf("initialise session store: %w", err)
	}

	flow, err := checkout.NewFlow(checkout.FlowDeps{
		Client: client,
		Logger: logger.Named("checkout"),
	})
	if err != nil {
		if demo != nil {
			demo.Close(logger)
		}
		return nil, fmt.Errorf("initialise checkout flow: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		bridge:  bridge,
		client:  client,
		session: sessionStore,
		cart:    cartStore,
		flow:    flow,
		demo:    demo,
	}

	if demo != nil {
		// Demo state is blank every run, so sign in as the seeded buyer
		// up front; an explicit login command still switches accounts.
		if _, err := sessionStore.Login(ctx, api.Credentials{Email: fake.DemoBuyerEmail, Password: fake.DemoPassword}); err != nil {
			logger.Warn("demo sign-in failed", zap.Error(err))
		} else {
			logger.Info("demo marketplace ready",
				zap.String("url", demo.url),
				zap.String("account", fake.DemoBuyerEmail),
				zap.String("seller", fake.DemoSellerEmail))
		}
	}

	return a, nil
}

func (a *app) Close() {
	a.client.CloseIdleConnections()
	if a.demo != nil {
		a.demo.Close(a.logger)
	}
	_ = a.logger.Sync()
}

// signedIn resolves the session once and reports whether requests will carry
// credentials. Transient backend failures fall back to the persisted profile,
// which still counts as signed in.
func (a *app) signedIn(ctx context.Context) bool {
	_, err := a.session.LoadProfile(ctx, false)
	return err == nil
}

// demoBackend hosts the seeded in-process marketplace on a loopback listener
// so every command exercises the real HTTP surface.
type demoBackend struct {
	fake     *fake.Server
	server   *http.Server
	url      string
	stateDir string
}

func startDemoBackend(logger *zap.Logger) (*demoBackend, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	stateDir, err := os.MkdirTemp("", "kraal-demo-")
	if err != nil {
		_ = lis.Close()
		return nil, err
	}

	srv := fake.NewServer(fake.ServerDeps{Logger: logger.Named("fake")})
	srv.SeedDemo()

	httpServer := &http.Server{Handler: srv.Handler()}
	go func() {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("demo backend stopped", zap.Error(err))
		}
	}()

	return &demoBackend{
		fake:     srv,
		server:   httpServer,
		url:      "http://" + lis.Addr().String(),
		stateDir: stateDir,
	}, nil
}

func (d *demoBackend) Close(logger *zap.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("demo backend shutdown error", zap.Error(err))
	}
	if err := os.RemoveAll(d.stateDir); err != nil {
		logger.Warn("demo state cleanup error", zap.Error(err))
	}
}
