package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/config"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/credentials"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/shop"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		if a.logger != nil {
			a.logger.Debug("command failed", slog.String("error", err.Error()))
		}
		fmt.Fprintln(stderr, "Error:", errorMessage(err))
		return 1
	}
	return 0
}

// app holds what every subcommand needs. It is populated by the root command's PersistentPreRunE.
type app struct {
	out    io.Writer
	errOut io.Writer

	envFile string
	profile string
	timeout time.Duration
	verbose bool

	cfg    *config.ClientConfig
	logger *slog.Logger
	store  credentials.Store
	client *apiclient.Client
	shop   *shop.Service
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vlpctl",
		Short: "Command line client for the vlp back-office api",
		Long: `vlpctl signs in to the back-office api, keeps the access token in the configured
credential store and calls the api on your behalf.

Configuration is read from the environment (and .env): VLP_API_BASE_URL must be set.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.Version = version.Get().String()

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&a.profile, "profile", "", "credential slot to use (default VLP_CREDENTIAL_SLOT)")
	flags.DurationVar(&a.timeout, "timeout", 0, "per request timeout (default VLP_REQUEST_TIMEOUT)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddCommand(
		a.versionCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.registerCommand(),
		a.healthCommand(),
		a.requestCommand(),
		a.carsCommand(),
		a.billingCommand(),
		a.expensesCommand(),
		a.customersCommand(),
		a.worksCommand(),
		a.inventoryCommand(),
		a.invitesCommand(),
		a.reportsCommand(),
		a.storesCommand(),
		a.valuationCommand(),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.NewClientConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = logger.ParseLogLevel(cfg.LogLevel)
	}
	a.logger = logger.NewTextLogger(a.errOut, level)

	slot := cfg.CredentialSlot
	if a.profile != "" {
		slot = a.profile
	}
	store, err := credentials.Open(cmd.Context(), credentials.StoreConfig{
		Backend:     cfg.CredentialStore,
		Slot:        slot,
		SQLitePath:  cfg.CredentialDB,
		Key:         cfg.CredentialKey,
		PostgresURL: cfg.PostgresURL,
		ValkeyURI:   cfg.ValkeyURI,
	})
	if err != nil {
		return fmt.Errorf("failed to open the %s credential store: %w", cfg.CredentialStore, err)
	}
	a.store = store

	timeout := cfg.RequestTimeout
	if a.timeout > 0 {
		timeout = a.timeout
	}
	a.client = apiclient.New(cfg.APIBaseURL,
		apiclient.WithAPIPrefix(cfg.APIPrefix),
		apiclient.WithCredentialStore(store),
		apiclient.WithTimeout(timeout),
		apiclient.WithLogger(a.logger),
		apiclient.WithUserAgent(version.UserAgent("vlpctl")),
	)
	a.shop = shop.New(a.client)

	a.logger.Debug("client configured",
		slog.String("base_url", a.client.BaseURL()),
		slog.String("credential_store", cfg.CredentialStore),
		slog.String("slot", slot),
	)
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := credentials.Close(a.store); err != nil && a.logger != nil {
		a.logger.Warn("failed to close credential store", slog.String("error", err.Error()))
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no configuration is needed to print the version
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(a.out, version.Get())
		},
	}
}

// errorMessage returns the text shown to the user for err.
// api client errors are reduced to their end user message, anything else (flag and input errors) is shown as is.
func errorMessage(err error) string {
	var (
		re *apiclient.RequestError
		te *apiclient.TransportError
		ce *apiclient.ConfigError
		de *apiclient.DecodeError
	)
	if errors.As(err, &re) || errors.As(err, &te) || errors.As(err, &ce) || errors.As(err, &de) {
		return apiclient.UserMessage(err)
	}
	return err.Error()
}
