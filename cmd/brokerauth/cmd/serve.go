package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/brokerauth/access"
	"github.com/jrsteele09/brokerauth/exchange/broker"
	"github.com/jrsteele09/brokerauth/exchange/google"
	"github.com/jrsteele09/brokerauth/exchange/oauthstate"
	"github.com/jrsteele09/brokerauth/internal/config"
	"github.com/jrsteele09/brokerauth/kvstore"
	"github.com/jrsteele09/brokerauth/server"
	"github.com/jrsteele09/brokerauth/sessions"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !quiet {
				displayAppname(a.cfg.GetAppName())
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Do not print the startup banner")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	settings, err := config.NewAccessPolicy(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	handler, err := newHandler(cfg, settings, store, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.GetEnv()).
			Bool("whitelist_enabled", settings.WhitelistEnabled).
			Bool("emergency_bypass", settings.EmergencyBypass).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server.ListenAndServe: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}
		log.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}

// newHandler assembles the session manager, registry, policy and exchange
// clients behind the HTTP surface.
func newHandler(cfg config.Config, settings config.AccessPolicy, store kvstore.Store, reg prometheus.Registerer) (http.Handler, error) {
	manager := sessions.NewManager(store, cfg.GetBrokerSessionTTL(), cfg.GetIdentitySessionTTL())
	registry := newRegistry(cfg, store)
	policy := access.NewPolicy(settings, manager, registry, access.NewMetrics(reg))

	gatherer, _ := reg.(prometheus.Gatherer)
	return server.New(cfg, server.Deps{
		Sessions: manager,
		Registry: registry,
		Policy:   policy,
		Broker: broker.NewClient(broker.Config{
			APIKey:    cfg.GetBrokerAPIKey(),
			APISecret: cfg.GetBrokerAPISecret(),
			TokenURL:  cfg.GetBrokerTokenURL(),
			LoginURL:  cfg.GetBrokerLoginURL(),
			Timeout:   cfg.GetUpstreamTimeout(),
		}),
		Google: google.NewClient(google.Config{
			ClientID:     cfg.GetGoogleClientID(),
			ClientSecret: cfg.GetGoogleClientSecret(),
			AuthURL:      cfg.GetGoogleAuthURL(),
			TokenURL:     cfg.GetGoogleTokenURL(),
			UserInfoURL:  cfg.GetGoogleUserInfoURL(),
			RedirectURL:  cfg.GetGoogleRedirectURL(),
			Timeout:      cfg.GetUpstreamTimeout(),

			MaxUserInfoRetries: 2,
		}),
		State:    oauthstate.NewIssuer(cfg.GetOAuthStateKey(), 0),
		Gatherer: gatherer,
	})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
