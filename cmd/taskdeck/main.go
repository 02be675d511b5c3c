package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/taskdeck/internal/profilepg"
	"github.com/tyemirov/taskdeck/internal/sessionkit"
	"github.com/tyemirov/taskdeck/internal/taskapi"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskdeck",
		Short: "Task management client with JWT sessions and silent token refresh",
	}

	rootCmd.PersistentFlags().String("server_url", "", "Base URL of the task backend, including any path prefix")
	rootCmd.PersistentFlags().String("profile_store_url", "", "Profile store URL (postgres:// or sqlite://; leave empty for in-memory)")
	rootCmd.PersistentFlags().String("cookie_file", defaultCookieFile(), "File persisting the refresh cookie across runs; empty disables persistence")
	rootCmd.PersistentFlags().String("csrf_header", sessionkit.DefaultCsrfHeaderName, "Header name the backend expects the CSRF token on")
	rootCmd.PersistentFlags().Duration("http_timeout", sessionkit.DefaultRequestTimeout, "Per-request HTTP timeout")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server_url"))
	_ = viper.BindPFlag("profile_store_url", rootCmd.PersistentFlags().Lookup("profile_store_url"))
	_ = viper.BindPFlag("cookie_file", rootCmd.PersistentFlags().Lookup("cookie_file"))
	_ = viper.BindPFlag("csrf_header", rootCmd.PersistentFlags().Lookup("csrf_header"))
	_ = viper.BindPFlag("http_timeout", rootCmd.PersistentFlags().Lookup("http_timeout"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newLogoutCommand())
	rootCmd.AddCommand(newWhoamiCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newTaskTypeCommand())
	rootCmd.AddCommand(newSalesCommand())
	rootCmd.AddCommand(newUserCommand())

	return rootCmd
}

func defaultCookieFile() string {
	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return ""
	}
	return filepath.Join(homeDir, ".taskdeck", "cookies.json")
}

const (
	configCodeMissingServerURL   = "config.missing_server_url"
	configCodeInvalidHTTPTimeout = "config.invalid_http_timeout"
)

// ClientConfig is the resolved CLI configuration.
type ClientConfig struct {
	ServerURL       string
	ProfileStoreURL string
	CookieFile      string
	CsrfHeader      string
	HTTPTimeout     time.Duration
	Verbose         bool
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadClientConfig() (ClientConfig, error) {
	serverURL := strings.TrimSpace(viper.GetString("server_url"))
	if serverURL == "" {
		return ClientConfig{}, configError(configCodeMissingServerURL, "server_url must be provided")
	}

	httpTimeout := viper.GetDuration("http_timeout")
	if httpTimeout <= 0 {
		return ClientConfig{}, configError(configCodeInvalidHTTPTimeout, "http_timeout must be greater than zero")
	}

	return ClientConfig{
		ServerURL:       serverURL,
		ProfileStoreURL: viper.GetString("profile_store_url"),
		CookieFile:      viper.GetString("cookie_file"),
		CsrfHeader:      viper.GetString("csrf_header"),
		HTTPTimeout:     httpTimeout,
		Verbose:         viper.GetBool("verbose"),
	}, nil
}

// environment wires the session pipeline for one CLI invocation.
type environment struct {
	logger        *zap.Logger
	transport     *sessionkit.Transport
	tokens        *sessionkit.TokenStore
	csrf          *sessionkit.MetadataSlot
	sessions      *sessionkit.SessionStore
	refresher     *sessionkit.RefreshCoordinator
	client        *sessionkit.Client
	authenticator *sessionkit.Authenticator
	tasks         *taskapi.Client
	metrics       *sessionkit.CounterMetrics
	closeProfiles func()
}

func buildEnvironment(ctx context.Context, configuration ClientConfig) (*environment, error) {
	var logger *zap.Logger
	var loggerErr error
	if configuration.Verbose {
		logger, loggerErr = zap.NewDevelopment()
	} else {
		logger, loggerErr = zap.NewProduction()
	}
	if loggerErr != nil {
		return nil, loggerErr
	}

	profiles, closeProfiles, profileErr := buildProfileStore(ctx, configuration.ProfileStoreURL)
	if profileErr != nil {
		return nil, profileErr
	}

	transport, transportErr := sessionkit.NewTransport(configuration.ServerURL, sessionkit.TransportConfig{
		Timeout:    configuration.HTTPTimeout,
		CookieFile: configuration.CookieFile,
	})
	if transportErr != nil {
		closeProfiles()
		return nil, transportErr
	}

	clock := sessionkit.NewSystemClock()
	metrics := sessionkit.NewCounterMetrics()
	tokens := sessionkit.NewTokenStore(clock)
	csrf := sessionkit.NewMetadataSlot()
	sessions := sessionkit.NewSessionStore(tokens, profiles, logger)
	refresher := sessionkit.NewRefreshCoordinator(transport, tokens, sessions, csrf, metrics, logger)
	client := sessionkit.NewClient(transport, tokens, csrf, refresher, sessions, metrics, logger)
	client.SetCsrfHeaderName(configuration.CsrfHeader)
	client.OnAuthFailure(func() {
		fmt.Fprintln(os.Stderr, "session expired, run `taskdeck login`")
	})
	authenticator := sessionkit.NewAuthenticator(transport, client, sessions, csrf, clock, metrics, logger)

	return &environment{
		logger:        logger,
		transport:     transport,
		tokens:        tokens,
		csrf:          csrf,
		sessions:      sessions,
		refresher:     refresher,
		client:        client,
		authenticator: authenticator,
		tasks:         taskapi.NewClient(client),
		metrics:       metrics,
		closeProfiles: closeProfiles,
	}, nil
}

func buildProfileStore(ctx context.Context, profileStoreURL string) (sessionkit.ProfileStore, func(), error) {
	if profileStoreURL == "" {
		return sessionkit.NewMemoryProfileStore(), func() {}, nil
	}
	if strings.HasPrefix(profileStoreURL, "postgres://") || strings.HasPrefix(profileStoreURL, "postgresql://") {
		store, connectErr := profilepg.Connect(ctx, profileStoreURL)
		if connectErr != nil {
			return nil, nil, connectErr
		}
		return store, store.Close, nil
	}
	store, storeErr := sessionkit.NewDatabaseProfileStore(ctx, profileStoreURL)
	if storeErr != nil {
		return nil, nil, storeErr
	}
	return store, func() {}, nil
}

func (env *environment) close() {
	env.closeProfiles()
	_ = env.logger.Sync()
}

// withEnvironment loads config, builds the pipeline, and runs the command body.
func withEnvironment(command *cobra.Command, run func(ctx context.Context, env *environment) error) error {
	configuration, configErr := LoadClientConfig()
	if configErr != nil {
		return configErr
	}
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, buildErr := buildEnvironment(ctx, configuration)
	if buildErr != nil {
		return buildErr
	}
	defer env.close()
	return run(ctx, env)
}

// withSession additionally restores the persisted session before running.
func withSession(command *cobra.Command, run func(ctx context.Context, env *environment) error) error {
	return withEnvironment(command, func(ctx context.Context, env *environment) error {
		if bootstrapErr := env.refresher.Bootstrap(ctx); bootstrapErr != nil {
			env.logger.Debug("bootstrap refresh failed", zap.Error(bootstrapErr))
		}
		return run(ctx, env)
	})
}
