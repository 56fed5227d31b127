// Package config provides configuration loading for the GitOps backend.
// Values come from an optional YAML file and are then overridden by
// environment variables, so a deployment can run from the environment alone.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/heda-org/heda-gitops/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables that mirror config keys,
// e.g. HEDA_GITHUB_ORG for github.org
const EnvPrefix = "HEDA"

const (
	// AuthModeOAuth validates bearer tokens issued by the identity provider
	AuthModeOAuth = "oauth"

	// AuthModeSharedSecret accepts a static shared secret header
	AuthModeSharedSecret = "sharedSecret"
)

const (
	// GitBackendExec drives the git binary
	GitBackendExec = "exec"

	// GitBackendGoGit uses the in-process go-git implementation
	GitBackendGoGit = "go-git"
)

const (
	defaultAddress        = ":8080"
	defaultMaxUploadBytes = 32 << 20
	defaultAPIURL         = "https://api.github.com"
	defaultWebURL         = "https://github.com"
	defaultInviteRole     = "direct_member"
	defaultProvider       = "github"
	defaultGitBinary      = "git"
	defaultAuthorName     = "HEDA GitOps"
	defaultAuthorEmail    = "gitops@heda.invalid"
	defaultLedgerPath     = "data/onboarding.json"
)

var orgNamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path    string
	env     *viper.Viper
	skipEnv bool
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks first; EvalSymlinks also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithViper supplies the viper instance used for environment lookups.
// Values set directly on it take precedence over the environment.
func WithViper(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance cannot be nil")
		}
		cfg.env = v
		return nil
	}
}

// WithoutEnv loads the file alone, ignoring environment overrides
func WithoutEnv() Option {
	return func(cfg *loaderConfig) error {
		cfg.skipEnv = true
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	GitHub     GitHubConfig      `yaml:"github"`
	Auth       AuthConfig        `yaml:"auth"`
	Git        GitConfig         `yaml:"git"`
	Onboarding OnboardingConfig  `yaml:"onboarding"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address,omitempty"`

	// MaxUploadBytes caps the size of a publish request body
	MaxUploadBytes int64 `yaml:"maxUploadBytes,omitempty"`
}

// GitHubConfig defines the code hosting organization and credentials
type GitHubConfig struct {
	APIURL string `yaml:"apiURL,omitempty"`
	WebURL string `yaml:"webURL,omitempty"`
	Org    string `yaml:"org"`

	// AdminToken is an organization admin token used for repository
	// creation, branch protection, invitations and membership checks
	AdminToken string `yaml:"adminToken,omitempty"`

	// AdminTokenFile is read when AdminToken is empty
	AdminTokenFile string `yaml:"adminTokenFile,omitempty"`

	// PullRequestsAsUser opens pull requests with the requesting user's own
	// GitHub token, looked up through the identity provider management API
	PullRequestsAsUser bool `yaml:"pullRequestsAsUser,omitempty"`

	// RequireOrgMembership rejects /init and /publish for non-members
	RequireOrgMembership bool `yaml:"requireOrgMembership,omitempty"`

	// InviteRole is the organization role sent with invitations
	InviteRole string `yaml:"inviteRole,omitempty"`

	App GitHubAppConfig `yaml:"app"`
}

// GitHubAppConfig defines the GitHub App used by the webhook auto-merge flow
type GitHubAppConfig struct {
	ID             string `yaml:"id,omitempty"`
	PrivateKeyPath string `yaml:"privateKeyPath,omitempty"`
	WebhookSecret  string `yaml:"webhookSecret,omitempty"`
}

// AuthConfig defines how callers are authenticated
type AuthConfig struct {
	Mode     string `yaml:"mode,omitempty"`
	Domain   string `yaml:"domain,omitempty"`
	Audience string `yaml:"audience,omitempty"`

	// ExpectedProvider is the only identity provider accepted in the "sub" claim
	ExpectedProvider string `yaml:"expectedProvider,omitempty"`

	// JWKSRefreshInterval enables periodic key set refresh, e.g. "1h".
	// Empty means the key set is fetched once per process.
	JWKSRefreshInterval string `yaml:"jwksRefreshInterval,omitempty"`

	SharedSecret string `yaml:"sharedSecret,omitempty"`

	Management ManagementConfig `yaml:"management"`
}

// ManagementConfig holds the client credentials for the IdP management API
type ManagementConfig struct {
	ClientID     string `yaml:"clientID,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
}

// GitConfig defines how the local git working copies are driven
type GitConfig struct {
	Backend     string `yaml:"backend,omitempty"`
	Binary      string `yaml:"binary,omitempty"`
	AuthorName  string `yaml:"authorName,omitempty"`
	AuthorEmail string `yaml:"authorEmail,omitempty"`

	// WorkDir is the parent of the per-request temporary directories
	WorkDir string `yaml:"workDir,omitempty"`
}

// OnboardingConfig defines the onboarding ledger location
type OnboardingConfig struct {
	LedgerPath string `yaml:"ledgerPath,omitempty"`
}

type envBinding struct {
	key   string
	envs  []string
	apply func(c *Config, value string) error
}

func setString(target func(*Config) *string) func(*Config, string) error {
	return func(c *Config, value string) error {
		*target(c) = value
		return nil
	}
}

func setBool(target func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*target(c) = b
		return nil
	}
}

// envBindings maps config keys to the environment. The unprefixed names are
// the variables existing deployments already set.
var envBindings = []envBinding{
	{"server.address", []string{"HEDA_SERVER_ADDRESS"}, setString(func(c *Config) *string { return &c.Server.Address })},
	{"server.maxuploadbytes", []string{"HEDA_SERVER_MAX_UPLOAD_BYTES"}, func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Server.MaxUploadBytes = n
		return nil
	}},
	{"github.apiurl", []string{"HEDA_GITHUB_API_URL", "GITHUB_API_URL"}, setString(func(c *Config) *string { return &c.GitHub.APIURL })},
	{"github.weburl", []string{"HEDA_GITHUB_WEB_URL", "GITHUB_WEB_URL"}, setString(func(c *Config) *string { return &c.GitHub.WebURL })},
	{"github.org", []string{"HEDA_GITHUB_ORG", "GITHUB_ORG"}, setString(func(c *Config) *string { return &c.GitHub.Org })},
	{"github.admintoken", []string{"HEDA_GITHUB_ADMIN_TOKEN", "GITHUB_ADMIN_TOKEN"}, setString(func(c *Config) *string { return &c.GitHub.AdminToken })},
	{"github.pullrequestsasuser", []string{"HEDA_GITHUB_PULL_REQUESTS_AS_USER"}, setBool(func(c *Config) *bool { return &c.GitHub.PullRequestsAsUser })},
	{"github.requireorgmembership", []string{"HEDA_GITHUB_REQUIRE_ORG_MEMBERSHIP"}, setBool(func(c *Config) *bool { return &c.GitHub.RequireOrgMembership })},
	{"github.app.id", []string{"HEDA_GITHUB_APP_ID", "GITHUB_APP_ID"}, setString(func(c *Config) *string { return &c.GitHub.App.ID })},
	{"github.app.privatekeypath", []string{"HEDA_GITHUB_PRIVATE_KEY_PATH", "GITHUB_PRIVATE_KEY_PATH"}, setString(func(c *Config) *string { return &c.GitHub.App.PrivateKeyPath })},
	{"github.app.webhooksecret", []string{"HEDA_GITHUB_WEBHOOK_SECRET", "GITHUB_WEBHOOK_SECRET"}, setString(func(c *Config) *string { return &c.GitHub.App.WebhookSecret })},
	{"auth.mode", []string{"HEDA_AUTH_MODE"}, setString(func(c *Config) *string { return &c.Auth.Mode })},
	{"auth.domain", []string{"HEDA_AUTH_DOMAIN", "AUTH0_DOMAIN"}, setString(func(c *Config) *string { return &c.Auth.Domain })},
	{"auth.audience", []string{"HEDA_AUTH_AUDIENCE", "AUTH0_AUDIENCE"}, setString(func(c *Config) *string { return &c.Auth.Audience })},
	{"auth.sharedsecret", []string{"HEDA_SHARED_SECRET"}, setString(func(c *Config) *string { return &c.Auth.SharedSecret })},
	{"auth.management.clientid", []string{"HEDA_AUTH_CLIENT_ID", "CLIENT_ID"}, setString(func(c *Config) *string { return &c.Auth.Management.ClientID })},
	{"auth.management.clientsecret", []string{"HEDA_AUTH_CLIENT_SECRET", "CLIENT_SECRET"}, setString(func(c *Config) *string { return &c.Auth.Management.ClientSecret })},
	{"git.backend", []string{"HEDA_GIT_BACKEND"}, setString(func(c *Config) *string { return &c.Git.Backend })},
	{"git.workdir", []string{"HEDA_GIT_WORK_DIR"}, setString(func(c *Config) *string { return &c.Git.WorkDir })},
	{"onboarding.ledgerpath", []string{"HEDA_ONBOARDING_LEDGER_PATH", "ONBOARDING_DB_PATH"}, setString(func(c *Config) *string { return &c.Onboarding.LedgerPath })},
}

// LoadConfig builds the configuration from the optional YAML file and the
// environment, applies defaults and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if !loaderCfg.skipEnv {
		v := loaderCfg.env
		if v == nil {
			v = viper.New()
		}
		if err := config.applyEnv(v); err != nil {
			return nil, err
		}
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv(v *viper.Viper) error {
	for _, b := range envBindings {
		if err := v.BindEnv(append([]string{b.key}, b.envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.key, err)
		}
		value := strings.TrimSpace(v.GetString(b.key))
		if value == "" {
			continue
		}
		if err := b.apply(c, value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", b.key, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	defaults := []struct {
		field *string
		value string
	}{
		{&c.Server.Address, defaultAddress},
		{&c.GitHub.APIURL, defaultAPIURL},
		{&c.GitHub.WebURL, defaultWebURL},
		{&c.GitHub.InviteRole, defaultInviteRole},
		{&c.Auth.Mode, AuthModeOAuth},
		{&c.Auth.ExpectedProvider, defaultProvider},
		{&c.Git.Backend, GitBackendExec},
		{&c.Git.Binary, defaultGitBinary},
		{&c.Git.AuthorName, defaultAuthorName},
		{&c.Git.AuthorEmail, defaultAuthorEmail},
		{&c.Onboarding.LedgerPath, defaultLedgerPath},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	c.GitHub.APIURL = strings.TrimSuffix(c.GitHub.APIURL, "/")
	c.GitHub.WebURL = strings.TrimSuffix(c.GitHub.WebURL, "/")
}

func (c *Config) validate() error {
	var errs []error

	switch {
	case c.GitHub.Org == "":
		errs = append(errs, errors.New("github.org is required"))
	case !orgNamePattern.MatchString(c.GitHub.Org):
		errs = append(errs, fmt.Errorf("github.org %q is not a valid organization name", c.GitHub.Org))
	}
	if c.GitHub.AdminToken == "" && c.GitHub.AdminTokenFile == "" {
		errs = append(errs, errors.New("github.adminToken or github.adminTokenFile is required"))
	}

	switch c.Auth.Mode {
	case AuthModeOAuth:
		if c.Auth.Domain == "" {
			errs = append(errs, errors.New("auth.domain is required in oauth mode"))
		}
		if c.Auth.Audience == "" {
			errs = append(errs, errors.New("auth.audience is required in oauth mode"))
		}
		if _, err := c.Auth.GetJWKSRefreshInterval(); err != nil {
			errs = append(errs, err)
		}
	case AuthModeSharedSecret:
		if c.Auth.SharedSecret == "" {
			errs = append(errs, errors.New("auth.sharedSecret is required in sharedSecret mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be %q or %q, got %q",
			AuthModeOAuth, AuthModeSharedSecret, c.Auth.Mode))
	}

	if c.GitHub.PullRequestsAsUser {
		if c.Auth.Mode != AuthModeOAuth {
			errs = append(errs, errors.New("github.pullRequestsAsUser requires oauth mode"))
		}
		if c.Auth.Management.ClientID == "" || c.Auth.Management.ClientSecret == "" {
			errs = append(errs, errors.New("github.pullRequestsAsUser requires auth.management credentials"))
		}
	}

	app := c.GitHub.App
	if set := countSet(app.ID, app.PrivateKeyPath, app.WebhookSecret); set != 0 && set != 3 {
		errs = append(errs, errors.New("github.app requires id, privateKeyPath and webhookSecret together"))
	}
	if app.ID != "" {
		if _, err := strconv.ParseInt(app.ID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("github.app.id must be numeric, got %q", app.ID))
		}
	}

	if c.Git.Backend != GitBackendExec && c.Git.Backend != GitBackendGoGit {
		errs = append(errs, fmt.Errorf("git.backend must be %q or %q, got %q",
			GitBackendExec, GitBackendGoGit, c.Git.Backend))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

// WebhookEnabled reports whether the GitHub App webhook flow is configured
func (c *Config) WebhookEnabled() bool {
	return c.GitHub.App.ID != ""
}

// GetAdminToken returns the admin token, reading AdminTokenFile when the
// token is not set inline. Surrounding whitespace is trimmed.
func (g *GitHubConfig) GetAdminToken() (string, error) {
	if g.AdminToken != "" {
		return g.AdminToken, nil
	}
	data, err := os.ReadFile(filepath.Clean(g.AdminTokenFile))
	if err != nil {
		return "", fmt.Errorf("failed to read admin token from file %s: %w", g.AdminTokenFile, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("admin token file %s is empty", g.AdminTokenFile)
	}
	return token, nil
}

// GetAppID returns the numeric GitHub App id
func (g *GitHubAppConfig) GetAppID() int64 {
	id, _ := strconv.ParseInt(g.ID, 10, 64)
	return id
}

// GetJWKSRefreshInterval parses JWKSRefreshInterval; zero means never refresh
func (a *AuthConfig) GetJWKSRefreshInterval() (time.Duration, error) {
	if a.JWKSRefreshInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.JWKSRefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("auth.jwksRefreshInterval: %w", err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("auth.jwksRefreshInterval must be at least 1m, got %s", d)
	}
	return d, nil
}

// Issuer returns the expected token issuer, "https://{domain}/"
func (a *AuthConfig) Issuer() string {
	return "https://" + a.Domain + "/"
}

// JWKSURL returns the identity provider key set location
func (a *AuthConfig) JWKSURL() string {
	return "https://" + a.Domain + "/.well-known/jwks.json"
}
