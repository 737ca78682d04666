package probe

import (
	"context"
	"strings"
	"testing"

	"github.com/vigil-dev/vigil/internal/models"
)

func TestSSRFGuardValidateURL(t *testing.T) {
	guard := NewSSRFGuard(false)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public address", "http://1.1.1.1/health", false},
		{"public address https", "https://8.8.8.8/", false},
		{"ftp scheme", "ftp://example.com/file", true},
		{"missing hostname", "http:///path", true},
		{"localhost", "http://localhost:8080/", true},
		{"loopback literal", "http://127.0.0.1/", true},
		{"loopback v6", "http://[::1]/", true},
		{"unspecified", "http://0.0.0.0/", true},
		{"private 10/8", "http://10.0.0.5/", true},
		{"private 172.16/12", "http://172.16.0.1/", true},
		{"private 192.168/16", "http://192.168.1.1/", true},
		{"link local", "http://169.254.1.1/", true},
		{"aws metadata", "http://169.254.169.254/latest/meta-data/", true},
		{"ecs metadata", "http://169.254.170.2/v2/credentials", true},
		{"gcp metadata", "http://metadata.google.internal/computeMetadata/v1/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSSRFGuardAllowPrivate(t *testing.T) {
	guard := NewSSRFGuard(true)

	for _, url := range []string{"http://127.0.0.1:9090/", "http://192.168.1.1/", "http://10.0.0.5/"} {
		if err := guard.ValidateURL(url); err != nil {
			t.Errorf("ValidateURL(%q) with private allowed = %v, want nil", url, err)
		}
	}

	// Metadata endpoints stay blocked regardless
	for _, url := range []string{"http://169.254.169.254/", "http://metadata.google.internal/"} {
		if err := guard.ValidateURL(url); err == nil {
			t.Errorf("ValidateURL(%q) with private allowed should still be rejected", url)
		}
	}
}

func TestHTTPCheckRejectsInternalTarget(t *testing.T) {
	p := &HTTPProbe{}
	m := &models.Monitor{
		ID:      1,
		Type:    "http",
		URL:     "http://169.254.169.254/latest/meta-data/",
		Timeout: 5,
	}

	result, err := p.Check(context.Background(), m)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.IsUp() {
		t.Error("check against a metadata endpoint should not succeed")
	}
	if !strings.Contains(result.Message, "not allowed") {
		t.Errorf("result message = %q, want a URL validation failure", result.Message)
	}
}

func TestHTTPValidateRejectsInternalTarget(t *testing.T) {
	p := &HTTPProbe{}
	m := &models.Monitor{Type: "http", URL: "http://127.0.0.1:8080/"}

	if err := p.Validate(m); err == nil {
		t.Error("Validate should reject a loopback target")
	}
}
