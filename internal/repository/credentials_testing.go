package repository

import (
	"fmt"
	"testing"

	"github.com/zalando/go-keyring"
)

// TestCredentialManager wraps CredentialManager for tests. It switches the
// keyring to go-keyring's in-memory mock, so tests never touch the developer's
// real credential store, and uses a per-test service name.
//
// Usage:
//
//	cm := repository.NewTestCredentialManager(t)
//	err := cm.StoreToken("git.example.com", "secret-token")
type TestCredentialManager struct {
	*CredentialManager
}

// NewTestCredentialManager creates an isolated credential manager backed by
// the in-memory keyring mock.
func NewTestCredentialManager(t *testing.T) *TestCredentialManager {
	t.Helper()

	keyring.MockInit()

	return &TestCredentialManager{
		CredentialManager: &CredentialManager{
			service: fmt.Sprintf("refsync-test-%s", t.Name()),
		},
	}
}

// CreateTestToken generates a token that passes GitHub format validation.
// An empty prefix uses "ghp_".
func CreateTestToken(prefix string) string {
	if prefix == "" {
		prefix = "ghp_"
	}
	return prefix + "1234567890abcdefghijklmnopqrstuvwxyzABCD"
}

// AssertTokenStored verifies that token is stored for host.
func AssertTokenStored(t *testing.T, cm *TestCredentialManager, host, expectedToken string) {
	t.Helper()

	token, err := cm.GetToken(host)
	if err != nil {
		t.Fatalf("Expected token to be stored for %s, but got error: %v", host, err)
	}

	if token != expectedToken {
		t.Errorf("Expected token %q, got %q", expectedToken, token)
	}
}

// AssertTokenNotStored verifies that no token is stored for host.
func AssertTokenNotStored(t *testing.T, cm *TestCredentialManager, host string) {
	t.Helper()

	if cm.HasToken(host) {
		t.Errorf("Expected no token for %s, but HasToken returned true", host)
	}

	if _, err := cm.GetToken(host); err == nil {
		t.Errorf("Expected error when getting non-existent token for %s, but got nil", host)
	}
}
