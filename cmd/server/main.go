package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedback-backend/internal/config"
	"feedback-backend/internal/database"
	"feedback-backend/internal/handlers"
	"feedback-backend/internal/identity"
	"feedback-backend/internal/notify"
	"feedback-backend/internal/repository"
	"feedback-backend/internal/session"
	"feedback-backend/internal/store"
	"feedback-backend/internal/store/memstore"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"
)

const ServerVersion = "0.1.0"

func main() {
	usage := `Customer feedback server.

Settings come from the environment (and .env); flags override them.

Usage:
    feedbackd [--port=<port>] [--store=<store>] [--env=<env_file>] [--v=<level>]
    feedbackd -h | --help
    feedbackd --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    --port=<port>        Listen port.
    --store=<store>      mongo or memory.
    --env=<env_file>     Env file to load [default: .env].
    --v=<level>          Log verbosity [default: 0].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ServerVersion)
	if err != nil {
		panic(err)
	}

	level, _ := opts.String("--v")
	initLogging(level)
	defer glog.Flush()

	envFile, _ := opts.String("--env")
	cfg, err := config.Load(envFile)
	if err != nil {
		glog.Exitf("[main]config error = %s", err)
	}
	if port, err := opts.String("--port"); err == nil && port != "" {
		cfg.Port = port
	}
	if storeKind, err := opts.String("--store"); err == nil && storeKind != "" {
		cfg.Store = storeKind
	}
	if err := cfg.Validate(); err != nil {
		glog.Exitf("[main]config error = %s", err)
	}

	stores, closeStores := openStores(cfg)
	defer closeStores()

	provider := identity.NewProvider(stores.credentials, stores.tokens, cfg.JWTSecret, cfg.TokenTTL)
	sessions := session.NewManager(session.Deps{
		Identity:  provider,
		Users:     stores.users,
		Feedbacks: stores.feedbacks,
		Notifier:  notify.NewMockSlack(),
		Mailer:    notify.NewMailer(cfg.ResendAPIKey, cfg.FromEmail),
	}, session.Options{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		JoinDebounce:  cfg.JoinDebounce,
	})
	defer sessions.Close()

	reapCtx, stopReap := context.WithCancel(context.Background())
	defer stopReap()
	go sessions.Reap(reapCtx, session.DefaultSweepInterval)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(sessions, provider),
	}

	go func() {
		glog.Infof("[main]feedback backend starting on port %s (store %s)\n", cfg.Port, cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Exitf("[main]server failed = %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("[main]shutdown error = %s\n", err)
	}
}

// glog reads its settings from the flag package; docopt owns the command line.
func initLogging(level string) {
	flag.CommandLine.Parse([]string{})
	flag.Set("logtostderr", "true")
	if level != "" {
		flag.Set("v", level)
	}
}

type storeSet struct {
	users       store.UserStore
	feedbacks   store.FeedbackStore
	credentials store.CredentialStore
	tokens      store.TokenStore
}

func openStores(cfg *config.Config) (storeSet, func()) {
	if cfg.Store == config.StoreMemory {
		glog.Warningf("[main]memory store: data is lost on exit\n")
		mem := memstore.New()
		return storeSet{
			users:       mem.Users(),
			feedbacks:   mem.Feedbacks(),
			credentials: mem.Credentials(),
			tokens:      mem.Tokens(),
		}, func() {}
	}

	if err := database.Connect(cfg.MongoURI, cfg.DBName); err != nil {
		glog.Exitf("[main]failed to connect to MongoDB = %s", err)
	}

	userRepo := repository.NewUserRepo()
	feedbackRepo := repository.NewFeedbackRepo()
	credentialRepo := repository.NewCredentialRepo()
	tokenRepo := repository.NewAuthTokenRepo()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.EnsureIndexes(ctx, userRepo, feedbackRepo, credentialRepo, tokenRepo); err != nil {
		glog.Warningf("[main]failed to create indexes = %s\n", err)
	}

	stores := storeSet{
		users:       userRepo,
		feedbacks:   feedbackRepo,
		credentials: credentialRepo,
		tokens:      tokenRepo,
	}
	return stores, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Disconnect(ctx); err != nil {
			glog.Errorf("[main]disconnect error = %s\n", err)
		}
	}
}
