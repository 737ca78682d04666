package notification

import (
	"strings"
	"testing"
)

func TestProviderRegistry(t *testing.T) {
	for _, name := range []string{"webhook", "slack", "discord", "telegram", "smtp", "ntfy", "pagerduty"} {
		p, ok := GetProvider(name)
		if !ok {
			t.Errorf("provider %q not registered", name)
			continue
		}
		if p.Name() != name {
			t.Errorf("provider %q reports name %q", name, p.Name())
		}
	}
}

func TestProviderValidate(t *testing.T) {
	tests := []struct {
		provider string
		config   map[string]interface{}
		wantErr  bool
	}{
		{"webhook", map[string]interface{}{"webhook_url": "https://example.com/hook"}, false},
		{"webhook", map[string]interface{}{}, true},
		{"slack", map[string]interface{}{"webhook_url": "https://hooks.slack.com/x"}, false},
		{"slack", map[string]interface{}{"webhook_url": ""}, true},
		{"telegram", map[string]interface{}{"bot_token": "t", "chat_id": "c"}, false},
		{"telegram", map[string]interface{}{"bot_token": "t"}, true},
		{"smtp", map[string]interface{}{"smtp_host": "mail", "from_email": "a@b", "to_email": "c@d"}, false},
		{"smtp", map[string]interface{}{"smtp_host": "mail"}, true},
		{"ntfy", map[string]interface{}{"topic": "alerts"}, false},
		{"ntfy", map[string]interface{}{}, true},
		{"pagerduty", map[string]interface{}{"integration_key": "k"}, false},
		{"pagerduty", map[string]interface{}{"integration_key": ""}, true},
	}

	for _, tt := range tests {
		p, ok := GetProvider(tt.provider)
		if !ok {
			t.Fatalf("provider %q not registered", tt.provider)
		}
		err := p.Validate(tt.config)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.Validate(%v) error = %v, wantErr %v", tt.provider, tt.config, err, tt.wantErr)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	body := FormatMessage(&Message{
		Title:       "Monitor is DOWN",
		Body:        "Request timed out",
		MonitorName: "api",
		MonitorURL:  "https://example.com",
		Ping:        120,
		Time:        "2026-08-29T12:00:00Z",
	})

	for _, want := range []string{"Monitor is DOWN", "Request timed out", "Monitor: api", "URL: https://example.com", "Response Time: 120ms"} {
		if !strings.Contains(body, want) {
			t.Errorf("formatted message missing %q:\n%s", want, body)
		}
	}
}

func TestFormatMessageOmitsEmptyFields(t *testing.T) {
	body := FormatMessage(&Message{
		Title:       "Monitor is UP",
		Body:        "Recovered",
		MonitorName: "api",
	})

	if strings.Contains(body, "URL:") {
		t.Error("formatted message should omit empty URL")
	}
	if strings.Contains(body, "Response Time:") {
		t.Error("formatted message should omit zero response time")
	}
}
