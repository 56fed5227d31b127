package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"sort"
	"time"

	"github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/heda-org/heda-gitops/internal/app"
	"github.com/heda-org/heda-gitops/internal/auth"
	"github.com/heda-org/heda-gitops/internal/config"
	"github.com/heda-org/heda-gitops/internal/publish"
	"github.com/heda-org/heda-gitops/internal/webhook"
)

// ServerTestHelper manages the GitOps API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	remoteURL  publish.RemoteURLFunc
	address    string
	baseURL    string
	httpClient *http.Client
	app        *app.GitOpsApp
}

// NewServerTestHelper creates a helper for the server configured at
// configPath. remoteURL maps experiment repositories to local remotes.
func NewServerTestHelper(ctx context.Context, configPath string, remoteURL publish.RemoteURLFunc) *ServerTestHelper {
	address := freeAddress()
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		remoteURL:  remoteURL,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func freeAddress() string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	addr := listener.Addr().String()
	gomega.Expect(listener.Close()).To(gomega.Succeed())
	return addr
}

// StartServer starts the GitOps API server programmatically
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath), config.WithViper(viper.New()))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gitOpsApp, err := app.NewGitOpsApp(s.ctx,
		app.WithConfig(cfg),
		app.WithAddress(s.address),
		app.WithRemoteURL(s.remoteURL),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = gitOpsApp

	// Start the server in a goroutine (non-blocking)
	go func() {
		if err := gitOpsApp.Start(); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the GitOps API server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to be ready to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Response is a decoded API response
type Response struct {
	StatusCode int
	Body       map[string]any
}

// Detail returns the error detail of the response
func (r *Response) Detail() string {
	detail, _ := r.Body["detail"].(string)
	return detail
}

// String returns the named string field of the response body
func (r *Response) String(field string) string {
	v, _ := r.Body[field].(string)
	return v
}

func (s *ServerTestHelper) do(method, path, username, contentType string, body io.Reader) *Response {
	req, err := http.NewRequestWithContext(s.ctx, method, s.baseURL+path, body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if username != "" {
		req.Header.Set(auth.HeaderAPIKey, TestSharedSecret)
		req.Header.Set(auth.HeaderGitHubUsername, username)
	}

	resp, err := s.httpClient.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	out := &Response{StatusCode: resp.StatusCode, Body: map[string]any{}}
	data, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	if len(data) > 0 {
		gomega.Expect(json.Unmarshal(data, &out.Body)).To(gomega.Succeed(), string(data))
	}
	return out
}

// Get issues an authenticated GET as username, or anonymously when username is empty
func (s *ServerTestHelper) Get(path, username string) *Response {
	return s.do(http.MethodGet, path, username, "", nil)
}

// Init calls POST /init as username
func (s *ServerTestHelper) Init(username, experiment string) *Response {
	body, err := json.Marshal(map[string]string{"experiment_name": experiment})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return s.do(http.MethodPost, "/init", username, "application/json", bytes.NewReader(body))
}

// Publish uploads files, keyed by relative path, through POST /publish as username
func (s *ServerTestHelper) Publish(username, experiment string, files map[string]string) *Response {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	gomega.Expect(mw.WriteField("experiment_name", experiment)).To(gomega.Succeed())

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		// CreateFormFile would strip directories from the filename
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, p))
		header.Set("Content-Type", "application/octet-stream")
		part, err := mw.CreatePart(header)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		_, err = part.Write([]byte(files[p]))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	}
	gomega.Expect(mw.Close()).To(gomega.Succeed())

	return s.do(http.MethodPost, "/publish", username, mw.FormDataContentType(), &buf)
}

// Onboard calls POST /onboard as username
func (s *ServerTestHelper) Onboard(username string) *Response {
	return s.do(http.MethodPost, "/onboard", username, "", nil)
}

// OnboardStatus calls GET /onboard/status as username
func (s *ServerTestHelper) OnboardStatus(username string) *Response {
	return s.Get("/onboard/status", username)
}

// Webhook delivers a GitHub event signed with secret
func (s *ServerTestHelper) Webhook(event string, payload []byte, secret string) *Response {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.baseURL+"/webhooks/github", bytes.NewReader(payload))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.EventHeader, event)
	req.Header.Set(webhook.DeliveryHeader, fmt.Sprintf("delivery-%d", time.Now().UnixNano()))
	req.Header.Set(webhook.SignatureHeader, webhook.Sign([]byte(secret), payload))

	resp, err := s.httpClient.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	out := &Response{StatusCode: resp.StatusCode, Body: map[string]any{}}
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&out.Body)).To(gomega.Succeed())
	return out
}
