package helpers

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/onsi/gomega"
)

// TestOrg is the organization every integration config points at
const TestOrg = "heda-org"

// TestSharedSecret is the X-API-Key accepted by the test server
const TestSharedSecret = "integration-secret"

// ConfigOptions holds the variable parts of a test configuration
type ConfigOptions struct {
	APIURL               string
	LedgerPath           string
	WorkDir              string
	RequireOrgMembership bool

	// AppKeyPath and WebhookSecret enable the webhook auto-merge flow
	AppKeyPath    string
	WebhookSecret string
}

// WriteConfigYAML writes a shared-secret configuration file to dir and returns its path
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	appBlock := ""
	if opts.AppKeyPath != "" {
		appBlock = fmt.Sprintf(`  app:
    id: "1234"
    privateKeyPath: %s
    webhookSecret: %s
`, opts.AppKeyPath, opts.WebhookSecret)
	}

	configContent := fmt.Sprintf(`server:
  address: ":0"
github:
  apiURL: %s
  webURL: https://github.test
  org: %s
  adminToken: integration-admin-token
  requireOrgMembership: %t
%sauth:
  mode: sharedSecret
  sharedSecret: %s
git:
  backend: exec
  workDir: %s
onboarding:
  ledgerPath: %s
`, opts.APIURL, TestOrg, opts.RequireOrgMembership, appBlock, TestSharedSecret, opts.WorkDir, opts.LedgerPath)

	configPath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}

// WriteAppKey writes a fresh PEM encoded RSA key for the GitHub App and returns its path
func WriteAppKey(dir string) string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	keyPath := filepath.Join(dir, "app.pem")
	err = os.WriteFile(keyPath, keyPEM, 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return keyPath
}
