package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/client"
	"github.com/lendkit/backoffice/metrics/export/prometheus"
	"github.com/lendkit/backoffice/store"
	"github.com/lendkit/backoffice/token"
)

// probeEnv holds the wiring shared by every command: one store, one bus, and
// one metrics engine, so the API client and the coordinator report into the
// same snapshot the way a console process would.
type probeEnv struct {
	cfg     probeConfig
	demo    *demoBackend
	store   *store.File
	bus     *backoffice.Bus
	metrics *backoffice.Metrics
	parser  *token.Parser
	api     *client.Client
}

func newProbeEnv(cfg probeConfig, demoMode bool) (*probeEnv, error) {
	env := &probeEnv{cfg: cfg}

	if demoMode {
		demo, err := startDemoBackend()
		if err != nil {
			return nil, fmt.Errorf("start demo backend: %w", err)
		}
		env.demo = demo
		env.cfg.API.BaseURL = demo.URL()
		env.cfg.Token.VerifyMethod = "hs256"
		env.cfg.Token.VerifyKey = []byte(demoSigningKey)
		env.cfg.Token.Issuer = demoIssuer
		env.cfg.Token.Audience = demoAudience
		// Demo tokens live two minutes; a short threshold lets watch show
		// a full warn-and-renew cycle in about ninety seconds.
		env.cfg.Session.WarningThreshold = 30 * time.Second
		log.Debug().Str("url", demo.URL()).Msg("demo backend listening")
	}

	if err := os.MkdirAll(filepath.Dir(env.cfg.Store.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	var (
		fileStore *store.File
		err       error
	)
	if passphrase := os.Getenv(env.cfg.Store.PassphraseEnv); passphrase != "" {
		fileStore, err = store.NewSealedFile(env.cfg.Store.Path, passphrase)
		log.Debug().Str("path", env.cfg.Store.Path).Msg("using sealed token store")
	} else {
		fileStore, err = store.NewFile(env.cfg.Store.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	env.store = fileStore

	libCfg := env.cfg.coordinatorConfig()
	env.bus = backoffice.NewBus(libCfg.Bus)
	env.metrics = backoffice.NewMetrics(libCfg.Metrics)

	env.parser, err = token.NewParser(token.Config{
		VerifyMode: token.VerifyMode(env.cfg.Token.VerifyMethod),
		Key:        env.cfg.Token.VerifyKey,
		Issuer:     env.cfg.Token.Issuer,
		Audience:   env.cfg.Token.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("token parser: %w", err)
	}

	if env.cfg.API.BaseURL != "" {
		env.api, err = client.New(client.Config{
			BaseURL:   env.cfg.API.BaseURL,
			UserAgent: env.cfg.API.UserAgent,
			Store:     env.store,
			Bus:       env.bus,
			Metrics:   env.metrics,
			Throttle: client.ThrottleConfig{
				Enabled:           env.cfg.API.ThrottleRPS > 0,
				RequestsPerSecond: env.cfg.API.ThrottleRPS,
				Burst:             env.cfg.API.ThrottleBurst,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("api client: %w", err)
		}
	}
	return env, nil
}

func (e *probeEnv) close() {
	if e.demo != nil {
		e.demo.Close()
	}
}

func (e *probeEnv) run(command string, args []string) error {
	switch command {
	case "login":
		return e.cmdLogin(args)
	case "whoami":
		return e.cmdWhoami(args)
	case "refresh":
		return e.cmdRefresh(args)
	case "watch":
		return e.cmdWatch(args)
	case "snapshot":
		return e.cmdSnapshot(args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (e *probeEnv) requireAPI() error {
	if e.api == nil {
		return errors.New("no API configured; pass -api, set api.base_url in the config, or use -demo")
	}
	return nil
}

func (e *probeEnv) cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "operator username")
	password := fs.String("password", "", "operator password")
	fs.Parse(args)

	if err := e.requireAPI(); err != nil {
		return err
	}
	if e.demo != nil && *username == "" {
		*username = demoUsername
		*password = demoPassword
		log.Info().Str("username", *username).Msg("using demo credentials")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.api.Auth.Login(ctx, client.Credentials{Username: *username, Password: *password}); err != nil {
		return err
	}
	pair, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload stored pair: %w", err)
	}
	claims, err := e.parser.Parse(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("parse access token: %w", err)
	}
	fmt.Printf("signed in as %s (%s), session expires %s\n",
		claims.Name, claims.Role, claims.ExpiryTime().Format(time.RFC3339))
	return nil
}

func (e *probeEnv) cmdWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	remote := fs.Bool("remote", false, "also fetch the profile from the API")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pair, err := e.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoPair) {
			fmt.Println("not signed in")
			return nil
		}
		return fmt.Errorf("load stored pair: %w", err)
	}
	claims, err := e.parser.Parse(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("parse access token: %w", err)
	}

	now := time.Now()
	fmt.Printf("operator:  %s\n", claims.Name)
	fmt.Printf("role:      %s\n", claims.Role)
	fmt.Printf("tenant:    %s\n", claims.TenantID)
	fmt.Printf("session:   %s\n", claims.SessionID)
	fmt.Printf("expires:   %s\n", claims.ExpiryTime().Format(time.RFC3339))
	if claims.ExpiredAt(now) {
		fmt.Println("status:    expired")
	} else {
		fmt.Printf("remaining: %s\n", claims.Remaining(now).Round(time.Second))
	}

	if *remote {
		if err := e.requireAPI(); err != nil {
			return err
		}
		profile, err := e.api.Auth.Me(ctx)
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		fmt.Printf("server id: %s\n", profile.ID)
		fmt.Printf("email:     %s\n", profile.Email)
		for _, capName := range profile.Capabilities {
			fmt.Printf("can:       %s\n", capName)
		}
	}
	return nil
}

func (e *probeEnv) cmdRefresh(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	fs.Parse(args)

	if err := e.requireAPI(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// A fresh demo backend does not know refresh tokens minted by a
	// previous run, so sign in first to seed one it will accept.
	if e.demo != nil {
		if err := e.api.Auth.Login(ctx, client.Credentials{Username: demoUsername, Password: demoPassword}); err != nil {
			return err
		}
	}

	if err := e.api.Auth.Refresh(ctx); err != nil {
		return err
	}
	pair, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload stored pair: %w", err)
	}
	claims, err := e.parser.Parse(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("parse refreshed token: %w", err)
	}
	fmt.Printf("refreshed, session now expires %s\n", claims.ExpiryTime().Format(time.RFC3339))
	return nil
}

func (e *probeEnv) cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	threshold := fs.Duration("threshold", e.cfg.Session.WarningThreshold, "timeout warning threshold")
	autoExtend := fs.Bool("auto-extend", e.demo != nil, "refresh the session when the warning fires")
	runFor := fs.Duration("for", 0, "stop after this long (0 runs until interrupted)")
	fs.Parse(args)

	ctx := context.Background()

	if e.demo != nil {
		if err := e.api.Auth.Login(ctx, client.Credentials{Username: demoUsername, Password: demoPassword}); err != nil {
			return err
		}
		log.Info().Str("username", demoUsername).Msg("signed in to demo backend")
	}

	coordinator, err := backoffice.New().
		WithConfig(e.cfg.coordinatorConfig()).
		WithStore(e.store).
		WithBus(e.bus).
		WithMetrics(e.metrics).
		WithAuditSink(journalLogSink{}).
		Build()
	if err != nil {
		return err
	}
	defer coordinator.Teardown()

	if err := coordinator.Initialize(ctx); err != nil {
		return err
	}
	log.Info().
		Str("state", coordinator.State().String()).
		Dur("threshold", *threshold).
		Msg("coordinator running")

	warnSub := coordinator.OnTimeoutWarning(*threshold, func(remaining time.Duration) {
		log.Warn().Dur("remaining", remaining).Msg("session timeout warning")
		if *autoExtend {
			// The callback runs on the coordinator loop; renewing
			// must not block it.
			go e.renewSession(coordinator)
		}
	})
	defer warnSub.Cancel()

	endedCh := make(chan backoffice.EndReason, 1)
	endSub := coordinator.OnSessionEnded(func(reason backoffice.EndReason) {
		select {
		case endedCh <- reason:
		default:
		}
	})
	defer endSub.Cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	status := time.NewTicker(5 * time.Second)
	defer status.Stop()

	var deadline <-chan time.Time
	if *runFor > 0 {
		timer := time.NewTimer(*runFor)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-stop:
			log.Info().Msg("interrupted")
			return e.report(coordinator)
		case <-deadline:
			return e.report(coordinator)
		case reason := <-endedCh:
			log.Info().Str("reason", reason.String()).Msg("session ended")
			return e.report(coordinator)
		case <-status.C:
			logStatus(coordinator)
		}
	}
}

// renewSession refreshes through the API when one is configured; the
// token-refreshed event on the shared bus then carries the new pair to the
// coordinator. Without an API it falls back to re-reading storage, which
// covers a pair renewed by another process on the same machine.
func (e *probeEnv) renewSession(coordinator *backoffice.Coordinator) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if e.api != nil {
		if err := e.api.Auth.Refresh(ctx); err != nil {
			log.Err(err).Msg("auto refresh failed")
		} else {
			log.Info().Msg("session refreshed")
		}
		return
	}
	if err := coordinator.ExtendSession(ctx); err != nil {
		log.Err(err).Msg("extend failed")
	} else {
		log.Info().Msg("session re-read from storage")
	}
}

func (e *probeEnv) cmdSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if e.demo != nil {
		if err := e.api.Auth.Login(ctx, client.Credentials{Username: demoUsername, Password: demoPassword}); err != nil {
			return err
		}
	}

	coordinator, err := backoffice.New().
		WithConfig(e.cfg.coordinatorConfig()).
		WithStore(e.store).
		WithBus(e.bus).
		WithMetrics(e.metrics).
		Build()
	if err != nil {
		return err
	}
	defer coordinator.Teardown()

	if err := coordinator.Initialize(ctx); err != nil {
		return err
	}
	return e.report(coordinator)
}

func (e *probeEnv) report(coordinator *backoffice.Coordinator) error {
	rep := coordinator.LifecycleReport()
	log.Info().
		Str("state", rep.State.String()).
		Uint64("initializations", rep.Initializations).
		Uint64("warnings_fired", rep.WarningsFired).
		Uint64("sessions_ended", rep.SessionsEnded).
		Uint64("refreshes_observed", rep.RefreshesObserved).
		Uint64("extends_requested", rep.ExtendsRequested).
		Uint64("bus_dropped", rep.BusDropped).
		Uint64("journal_dropped", rep.JournalDropped).
		Msg("lifecycle report")

	fmt.Print(prometheus.NewPrometheusExporter(coordinator).Render())
	return nil
}

func logStatus(coordinator *backoffice.Coordinator) {
	evt := log.Info().Str("state", coordinator.State().String())
	if claims, ok := coordinator.Identity(); ok {
		evt = evt.
			Str("operator", claims.Name).
			Str("role", claims.Role).
			Dur("remaining", claims.Remaining(time.Now()).Round(time.Second))
	}
	if warning := coordinator.Warning(); warning.Active {
		evt = evt.Dur("warning_remaining", warning.Remaining)
	}
	evt.Msg("session status")
}

// journalLogSink forwards coordinator journal records to the console log.
type journalLogSink struct{}

func (journalLogSink) Write(_ context.Context, rec backoffice.ActionRecord) {
	evt := log.Debug().Str("action", rec.Action).Bool("success", rec.Success)
	if rec.Actor != "" {
		evt = evt.Str("actor", rec.Actor)
	}
	if rec.Role != "" {
		evt = evt.Str("role", rec.Role)
	}
	if rec.Error != "" {
		evt = evt.Str("error", rec.Error)
	}
	evt.Msg("journal")
}
