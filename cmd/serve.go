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

	"github.com/spf13/cobra"

	"dply/internal/cluster"
	"dply/internal/config"
	"dply/internal/httpapi"
	"dply/internal/orchestrator"
	"dply/internal/provisioner"
	"dply/internal/secretstore"
	"dply/internal/store"
	"dply/pkg/logging"
)

// serveConfigPath points at the YAML config file. Environment variables
// still override whatever the file sets.
var serveConfigPath string

// serveCmd starts the control plane: the HTTP API plus the background
// provisioning workers behind it.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dply API server",
	Long: `Starts the dply control plane.

The server exposes the environment and team APIs over HTTP and runs the
cluster provisioning workers in the background. With no database
configured it keeps all state in memory, which is useful for local
development; point it at Postgres for anything durable.

Shutdown is graceful: on SIGINT/SIGTERM the HTTP listener drains and the
server waits for in-flight provisioning tasks to reach a terminal state.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, os.Stderr)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	secrets, err := secretstore.NewEncryptedFileStore(cfg.Secrets.Dir, secretstore.EnvMasterKeyProvider{Var: cfg.Secrets.MasterKeyEnv})
	if err != nil {
		return fmt.Errorf("failed to open secret store: %w", err)
	}

	backend := cluster.NewCLI(
		cluster.WithBinary(cfg.Provisioning.Binary),
		cluster.WithTimeouts(cfg.Provisioning.CreateTimeout.Std(), cfg.Provisioning.KubeconfigTimeout.Std()),
	)

	environments := orchestrator.New(st, secrets, backend, orchestrator.WithAttempts(cfg.Provisioning.Attempts))
	teams := orchestrator.NewTeams(st, provisioner.New(secrets, provisioner.Options{}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpapi.NewServer(cfg, st, environments, teams).Router(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("serve", "Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("serve", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("serve", err, "HTTP shutdown did not complete cleanly")
	}

	// Let provisioning tasks reach a terminal state before exiting so no
	// environment is left stuck in PROVISIONING.
	environments.Wait()
	teams.Wait()
	return <-errCh
}

func openStore(cfg config.Config) (*store.Store, error) {
	if cfg.Database.Enabled() {
		return store.OpenPostgres(cfg.Database.DSN())
	}
	logging.Warn("serve", "No database configured, using in-memory store")
	return store.NewMemoryStore(), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to the YAML configuration file")
}
