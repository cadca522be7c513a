package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"email-router/internal/auth"
	"email-router/internal/common/logging"
	"email-router/internal/config"
	"email-router/internal/handlers"
	"email-router/internal/middleware"
	"email-router/internal/reload"
	"email-router/internal/routing"
	"email-router/internal/server"
)

// Process exit codes. Operator mistakes (bad flags, bad config) exit with
// 1 so deployment scripts can tell them apart from a rules document that
// failed to initialize (2).
const (
	exitSuccess             = 0
	exitArgumentError       = 1
	exitInitializationError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional, the environment wins on conflicts
	_ = godotenv.Load()

	instanceFlag := flag.String("instance", "", "deployment instance to serve (blue or green), overrides INSTANCE_TYPE")
	rulesFlag := flag.String("rules", "", "path to the routing rules JSON document, overrides RULES_FILE")
	hostFlag := flag.String("host", "", "listen address, overrides HOST")
	portFlag := flag.String("port", "", "listen port, overrides PORT")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debugFlag {
		os.Setenv("LOG_LEVEL", "DEBUG")
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if *instanceFlag != "" {
		cfg.InstanceType = *instanceFlag
	}
	if *rulesFlag != "" {
		cfg.RulesFile = *rulesFlag
	}
	if *hostFlag != "" {
		cfg.Host = *hostFlag
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	if err := cfg.Validate(); err != nil {
		logging.Error("invalid configuration", err)
		return exitArgumentError
	}

	instance, err := routing.InstanceTypeFromString(cfg.InstanceType)
	if err != nil {
		logging.Error("invalid instance type", err)
		return exitArgumentError
	}

	logging.Info("starting email-router",
		logging.String("instance", instance.Name),
		logging.String("rules_file", cfg.RulesFile),
		logging.String("host", cfg.Host),
		logging.String("port", cfg.Port),
		logging.Bool("api_enabled", cfg.APIEnabled),
		logging.String("reload_schedule", cfg.ReloadSchedule))

	engine := routing.NewEngine(nil)
	reloader := reload.New(routing.SourceConfig{Type: routing.SourceJSONFile, URI: cfg.RulesFile}, instance, engine)
	if _, err := reloader.ReloadNow(); err != nil {
		logging.Error("unable to initialize rules datastore", err)
		return exitInitializationError
	}

	h := handlers.New(cfg, engine, reloader, instance)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	// Inbound webhook posts arrive unauthenticated from the mail service
	router.HandleFunc("/inbound/{instance}/", h.HandleInbound).Methods(http.MethodPost)

	router.HandleFunc("/", h.HandleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	if cfg.APIEnabled {
		api := router.PathPrefix("/api").Subrouter()
		api.Use(auth.New(cfg.APITokenSecret).RequireAuth)
		api.HandleFunc("/datastore", h.GetDatastore).Methods(http.MethodGet)
		api.HandleFunc("/targets", h.GetTargets).Methods(http.MethodGet)
		api.HandleFunc("/reload", h.ReloadDatastore).Methods(http.MethodPost)
	}

	if cfg.ReloadSchedule != "" {
		if err := reloader.StartSchedule(cfg.ReloadSchedule); err != nil {
			logging.Error("unable to start reload schedule", err)
			return exitInitializationError
		}
		defer reloader.Stop()
	}

	srv := server.New(router, cfg.Host, cfg.Port, cfg.TLSCertFile, cfg.TLSKeyFile)
	errCh := srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("server failed", err)
			return exitInitializationError
		}
		return exitSuccess
	case sig := <-quit:
		logging.Info("shutdown signal received", logging.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("graceful shutdown failed", err)
		return exitInitializationError
	}

	logging.Info("server stopped")
	return exitSuccess
}
