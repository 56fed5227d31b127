package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/heda-org/heda-gitops/internal/api"
	"github.com/heda-org/heda-gitops/internal/api/experiments"
	"github.com/heda-org/heda-gitops/internal/auth"
	"github.com/heda-org/heda-gitops/internal/config"
	"github.com/heda-org/heda-gitops/internal/git"
	"github.com/heda-org/heda-gitops/internal/github"
	"github.com/heda-org/heda-gitops/internal/idp"
	"github.com/heda-org/heda-gitops/internal/merge"
	"github.com/heda-org/heda-gitops/internal/onboarding"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/internal/publish"
	"github.com/heda-org/heda-gitops/internal/telemetry"
)

const (
	defaultHTTPAddress = ":8080"

	// Publishing clones and pushes a repository inside the request, so the
	// request budget is far above a plain API call
	defaultRequestTimeout = 120 * time.Second
	defaultReadTimeout    = 60 * time.Second
	defaultWriteTimeout   = 150 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	pipelineTracerName = "github.com/heda-org/heda-gitops/pipeline"
)

// defaultPublicPaths are paths that never require authentication. The
// webhook authenticates deliveries with its own signature.
var defaultPublicPaths = []string{"/health", "/readiness", "/version", "/metrics", "/webhooks"}

// GitOpsAppOptions is a function that configures the GitOps app builder
type GitOpsAppOptions func(*gitOpsAppConfig) error

// gitOpsAppConfig collects the builder inputs.
// It supports dependency injection for testing while providing sensible defaults for production
type gitOpsAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	gitClient  git.Client
	ledger     onboarding.Ledger
	remoteURL  publish.RemoteURLFunc
	userTokens publish.UserTokenSource
	appTokens  merge.TokenSource

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Auth components
	authMiddleware func(http.Handler) http.Handler
	userInfo       auth.UserInfoResolver

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...GitOpsAppOptions) (*gitOpsAppConfig, error) {
	cfg := &gitOpsAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.address == "" {
		cfg.address = defaultHTTPAddress
		if cfg.config != nil && cfg.config.Server.Address != "" {
			cfg.address = cfg.config.Server.Address
		}
	}

	return cfg, nil
}

// NewGitOpsApp creates the application with the given configuration
func NewGitOpsApp(
	ctx context.Context,
	opts ...GitOpsAppOptions,
) (*GitOpsApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	components, ghClient, err := buildServiceComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build service components: %w", err)
	}

	// Build auth middleware (if not injected)
	if cfg.authMiddleware == nil {
		cfg.authMiddleware, err = buildAuthMiddleware(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build auth middleware: %w", err)
		}
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components, ghClient)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &GitOpsApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding server.address
func WithAddress(addr string) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds the handling of a single request
func WithRequestTimeout(d time.Duration) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %s", d)
		}
		cfg.requestTimeout = d
		if cfg.writeTimeout < d {
			cfg.writeTimeout = d + 30*time.Second
		}
		return nil
	}
}

// WithGitClient allows injecting the git client (for testing)
func WithGitClient(c git.Client) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.gitClient = c
		return nil
	}
}

// WithLedger allows injecting the onboarding ledger (for testing)
func WithLedger(l onboarding.Ledger) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.ledger = l
		return nil
	}
}

// WithRemoteURL overrides how publish derives the clone URL of an
// experiment repository
func WithRemoteURL(f publish.RemoteURLFunc) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.remoteURL = f
		return nil
	}
}

// WithUserTokenSource overrides the source of user GitHub tokens used when
// pull requests are opened as the user
func WithUserTokenSource(s publish.UserTokenSource) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.userTokens = s
		return nil
	}
}

// WithAppTokenSource overrides the GitHub App installation token source
func WithAppTokenSource(s merge.TokenSource) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.appTokens = s
		return nil
	}
}

// WithAuthMiddleware replaces the configured authentication middleware
func WithAuthMiddleware(mw func(http.Handler) http.Handler) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.authMiddleware = mw
		return nil
	}
}

// WithUserInfo overrides the userinfo resolver used in oauth mode
func WithUserInfo(r auth.UserInfoResolver) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.userInfo = r
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP and pipeline metrics
func WithMeterProvider(mp metric.MeterProvider) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for request and pipeline spans
func WithTracerProvider(tp trace.TracerProvider) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h on GET /metrics
func WithMetricsHandler(h http.Handler) GitOpsAppOptions {
	return func(cfg *gitOpsAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildServiceComponents wires the pipelines to GitHub, git and the ledger
func buildServiceComponents(
	ctx context.Context,
	b *gitOpsAppConfig,
) (*AppComponents, *github.Client, error) {
	slog.Info("Initializing service components")
	c := b.config

	adminToken, err := c.GitHub.GetAdminToken()
	if err != nil {
		return nil, nil, err
	}
	ghClient := github.NewClient(c.GitHub.APIURL, c.GitHub.Org, adminToken)

	if b.gitClient == nil {
		b.gitClient, err = git.NewClient(c.Git.Backend,
			git.WithAuthor(c.Git.AuthorName, c.Git.AuthorEmail),
			git.WithToken(adminToken),
			git.WithGitBinary(c.Git.Binary),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create git client: %w", err)
		}
	}
	if b.ledger == nil {
		b.ledger = onboarding.NewFileLedger(c.Onboarding.LedgerPath)
	}

	pipelineMetrics, err := telemetry.NewPipelineMetrics(b.meterProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	onboardingMetrics, err := telemetry.NewOnboardingMetrics(b.meterProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create onboarding metrics: %w", err)
	}
	var tracer trace.Tracer
	if b.tracerProvider != nil {
		tracer = b.tracerProvider.Tracer(pipelineTracerName)
	}

	components := &AppComponents{Ledger: b.ledger}

	components.Provision = provision.NewService(ghClient, b.gitClient,
		provision.WithWorkDir(c.Git.WorkDir),
		provision.WithMetrics(pipelineMetrics),
		provision.WithTracer(tracer),
	)

	if b.remoteURL == nil {
		b.remoteURL = publish.GitHubRemote(c.GitHub.WebURL, c.GitHub.Org)
	}
	publishOpts := []publish.Option{
		publish.WithWorkDir(c.Git.WorkDir),
		publish.WithMetrics(pipelineMetrics),
		publish.WithTracer(tracer),
		publish.WithAutoMerge(c.WebhookEnabled()),
	}
	if c.GitHub.PullRequestsAsUser {
		if b.userTokens == nil {
			b.userTokens = idp.NewManagementClient(ctx, "https://"+c.Auth.Domain,
				c.Auth.Management.ClientID, c.Auth.Management.ClientSecret)
		}
		publishOpts = append(publishOpts, publish.WithPullRequestsAsUser(b.userTokens,
			func(token string) publish.PullRequestOpener { return ghClient.WithToken(token) }))
		slog.Info("Pull requests are opened with the requesting user's GitHub token")
	}
	components.Publish = publish.NewService(b.gitClient, ghClient, b.remoteURL, publishOpts...)

	components.Onboarding = onboarding.NewService(b.ledger, ghClient,
		onboarding.WithInviteRole(c.GitHub.InviteRole),
		onboarding.WithMetrics(onboardingMetrics),
		onboarding.WithTracer(tracer),
	)

	if c.WebhookEnabled() {
		if b.appTokens == nil {
			b.appTokens, err = github.LoadAppTokenSource(c.GitHub.APIURL, c.GitHub.App.GetAppID(), c.GitHub.App.PrivateKeyPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load GitHub App credentials: %w", err)
			}
		}
		mergeMetrics, err := telemetry.NewMergeMetrics(b.meterProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create merge metrics: %w", err)
		}
		components.Merge = merge.NewService(b.appTokens,
			func(token string) merge.PullRequestAPI { return ghClient.WithToken(token) },
			merge.WithMetrics(mergeMetrics),
			merge.WithTracer(tracer),
		)
		slog.Info("Webhook auto-merge enabled", "app_id", c.GitHub.App.ID)
	}

	slog.Info("Service components initialized successfully")
	return components, ghClient, nil
}

// buildAuthMiddleware creates the middleware for the configured auth mode
func buildAuthMiddleware(b *gitOpsAppConfig) (func(http.Handler) http.Handler, error) {
	userInfo := b.userInfo
	if userInfo == nil && b.config.Auth.Mode == config.AuthModeOAuth {
		userInfo = idp.NewClient(b.config.Auth.Domain)
	}
	return auth.NewAuthMiddleware(&b.config.Auth, userInfo)
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *gitOpsAppConfig,
	components *AppComponents,
	ghClient *github.Client,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Tracing wraps everything below it, including auth rejections
	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, b.middlewares...)
	}

	// Add metrics middleware if meter provider is configured
	// This should be added early in the chain to capture all requests
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		// Prepend metrics middleware to capture all requests including those rejected by auth
		b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
		slog.Info("HTTP metrics middleware enabled")
	}

	// Create auth middleware that bypasses public paths
	b.middlewares = append(b.middlewares, auth.WrapWithPublicPaths(b.authMiddleware, defaultPublicPaths))

	gitBinary := ""
	if b.config.Git.Backend == config.GitBackendExec {
		gitBinary = b.config.Git.Binary
	}

	experimentOpts := []experiments.RouterOption{
		experiments.WithMaxUploadBytes(b.config.Server.MaxUploadBytes),
	}
	if b.config.GitHub.RequireOrgMembership {
		experimentOpts = append(experimentOpts,
			experiments.WithMembershipGate(experiments.RequireOrgMember(ghClient, ghClient.Org())))
		slog.Info("Organization membership required for /init and /publish", "org", ghClient.Org())
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithReadinessChecker(newReadinessChecker(b.config.Onboarding.LedgerPath, gitBinary)),
		api.WithMetricsHandler(b.metricsHandler),
		api.WithExperimentOptions(experimentOpts...),
	}
	if components.Merge != nil {
		serverOpts = append(serverOpts, api.WithWebhook([]byte(b.config.GitHub.App.WebhookSecret), components.Merge))
	}

	router := api.NewServer(api.Services{
		Provision:  components.Provision,
		Publish:    components.Publish,
		Onboarding: components.Onboarding,
	}, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
