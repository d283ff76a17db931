package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/chains/evm"
	"github.com/pendergraft/donationwatch/internal/config"
	"github.com/pendergraft/donationwatch/internal/notify"
	"github.com/pendergraft/donationwatch/internal/observability/metrics"
	"github.com/pendergraft/donationwatch/internal/pricing"
	"github.com/pendergraft/donationwatch/internal/scheduler"
	"github.com/pendergraft/donationwatch/internal/server"
	"github.com/pendergraft/donationwatch/internal/storage"
	"github.com/pendergraft/donationwatch/internal/verification"
	verificationDomain "github.com/pendergraft/donationwatch/internal/verification/domain"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "donationwatch-server",
		Short:   "Donationwatch server - donation verification and reconciliation",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newBackfillCmd())
	rootCmd.AddCommand(newKeysCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one verification pass over pending donations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context())
		},
	}
}

func newBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Run one historic price backfill pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context())
		},
	}
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}

	cmd.AddCommand(newKeysCreateCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysRevokeCmd())

	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var name string
	var outputFile string
	var quiet bool
	var show bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Create a new API key for recording donations and projects.

By default, the key is written to a file in the current directory.
The key is only shown once - it cannot be retrieved later.

EXAMPLES:
  # Create key, write to file (default)
  donationwatch-server keys create --name "dapp-frontend"

  # Create key, print only (for piping to secrets manager)
  donationwatch-server keys create --name "dapp-frontend" --quiet | gh secret set DONATIONWATCH_API_KEY

  # Create key, display on screen
  donationwatch-server keys create --name "dapp-frontend" --show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCreate(name, outputFile, quiet, show)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name/label for the key (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write key to file (default: ./donationwatch-key-{name}.txt)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the key (for piping)")
	cmd.Flags().BoolVar(&show, "show", false, "display key on screen")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysList()
		},
	}
}

func newKeysRevokeCmd() *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysRevoke(keyID)
		},
	}

	cmd.Flags().StringVar(&keyID, "id", "", "key ID to revoke (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

// Key management commands

func runKeysCreate(name, outputFile string, quiet, show bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.Storage, quietLogger())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	key, err := store.CreateAPIKey(context.Background(), name)
	if err != nil {
		return fmt.Errorf("creating API key: %w", err)
	}

	if quiet {
		fmt.Println(key)
		return nil
	}

	if show {
		fmt.Println("⚠️  API key (save this - it cannot be retrieved later):")
		fmt.Println()
		fmt.Println("   ", key)
		fmt.Println()
		return nil
	}

	if outputFile == "" {
		outputFile = fmt.Sprintf("./donationwatch-key-%s.txt", name)
	}

	dir := filepath.Dir(outputFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	if err := os.WriteFile(outputFile, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key to file: %w", err)
	}

	fmt.Printf("✅ API key created: %s\n", name)
	fmt.Printf("   Written to: %s (mode 0600)\n", outputFile)
	fmt.Println()
	fmt.Println("   ⚠️  This key cannot be retrieved later. Keep it safe!")

	return nil
}

func runKeysList() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.Storage, quietLogger())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("listing API keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Println("No API keys found")
		fmt.Println()
		fmt.Println("Create one with: donationwatch-server keys create --name \"my-key\"")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tLAST USED")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != "" {
			lastUsed = k.LastUsedAt
		}
		idDisplay := k.ID
		if len(k.ID) > 8 {
			idDisplay = k.ID[:8] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", idDisplay, k.Name, k.CreatedAt, lastUsed)
	}
	w.Flush()

	return nil
}

func runKeysRevoke(keyID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.Storage, quietLogger())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		return fmt.Errorf("listing API keys: %w", err)
	}

	var fullKeyID string
	for _, k := range keys {
		if k.ID == keyID || (len(keyID) >= 8 && k.ID[:8] == keyID[:8]) {
			fullKeyID = k.ID
			break
		}
	}

	if fullKeyID == "" {
		return fmt.Errorf("key not found: %s", keyID)
	}

	if err := store.RevokeAPIKey(context.Background(), fullKeyID); err != nil {
		return fmt.Errorf("revoking API key: %w", err)
	}

	fmt.Printf("✅ API key revoked: %s\n", keyID)
	return nil
}

// One-shot job commands

func runScan(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	scanner := buildScanner(cfg, store, registry, logger)
	return scanner.Scan(ctx)
}

func runBackfill(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)

	if cfg.Pricing.OracleBaseURL == "" {
		return fmt.Errorf("PRICE_ORACLE_URL is not configured")
	}

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	backfill := buildBackfill(cfg, store, logger)
	return backfill.Run(ctx)
}

// Server command

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting donationwatch-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "donationwatch")

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	// Background jobs
	scanner := buildScanner(cfg, store, registry, logger)
	sched := scheduler.New(logger)
	if err := sched.Add("verify-donations", cfg.Jobs.VerifyCronExpression, scanner.Scan); err != nil {
		return fmt.Errorf("scheduling verification scan: %w", err)
	}
	if cfg.Pricing.OracleBaseURL != "" {
		backfill := buildBackfill(cfg, store, logger)
		if err := sched.Add("price-backfill", cfg.Jobs.BackfillCronExpression, backfill.Run); err != nil {
			return fmt.Errorf("scheduling price backfill: %w", err)
		}
	} else {
		logger.Warn("price backfill disabled: PRICE_ORACLE_URL not set")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(cfg, store, registry, logger)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// Wiring helpers

func buildRegistry(cfg *config.Config, logger *slog.Logger) (*chains.Registry, error) {
	networks, err := chains.LoadNetworksFile(cfg.Networks.File)
	if err != nil {
		return nil, fmt.Errorf("loading networks: %w", err)
	}
	tokens, err := evm.LoadTokensFile(cfg.Networks.TokensFile)
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}

	timeout := time.Duration(cfg.Jobs.ResolveTimeout) * time.Second
	registry := chains.NewRegistry()
	for _, network := range networks {
		client := evm.NewClient(network, timeout, logger)
		registry.Register(evm.NewResolver(network, client, tokens, logger))
		logger.Info("network registered", "network", network.Name, "id", network.ID)
	}
	return registry, nil
}

func buildScanner(cfg *config.Config, store storage.Store, registry *chains.Registry, logger *slog.Logger) *verification.Scanner {
	notifier := notify.NewWebhook(
		cfg.Notifier.WebhookURL,
		time.Duration(cfg.Notifier.RequestTimeout)*time.Second,
		logger,
	)
	svcImpl := verificationDomain.NewService(store, store, registry, notifier)
	svc := verificationDomain.LoggingMiddleware(logger)(svcImpl)
	queue := verification.NewQueue(svc, cfg.Jobs.VerifyConcurrentJobs, logger)
	return verification.NewScanner(store, queue, logger)
}

func buildBackfill(cfg *config.Config, store storage.Store, logger *slog.Logger) *pricing.Backfill {
	oracle := pricing.NewHTTPOracle(
		cfg.Pricing.OracleBaseURL,
		time.Duration(cfg.Pricing.RequestTimeout)*time.Second,
	)
	return pricing.NewBackfill(store, oracle, cfg.Pricing.BackfillCurrencies, logger)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
