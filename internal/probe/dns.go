package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

// DNSProbe performs DNS resolution checks
type DNSProbe struct{}

func init() {
	Register(&DNSProbe{})
}

func (d *DNSProbe) Name() string {
	return "dns"
}

func (d *DNSProbe) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	result := &models.CheckResult{
		MonitorID: monitor.ID,
		Status:    models.StatusDown,
		CheckedAt: time.Now(),
	}

	hostname := monitor.URL
	if hostname == "" {
		result.Message = "No hostname specified"
		return result, nil
	}

	expected := monitor.ConfigString("expected_result", "")

	resolver := &net.Resolver{PreferGo: true}
	if server := monitor.ConfigString("dns_server", ""); server != "" {
		if !strings.Contains(server, ":") {
			server += ":53"
		}
		dnsServer := server
		resolver.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
			dialer := net.Dialer{Timeout: time.Duration(monitor.Timeout) * time.Second}
			return dialer.DialContext(ctx, network, dnsServer)
		}
	}

	start := time.Now()
	addrs, err := resolver.LookupHost(ctx, hostname)
	ping := int(time.Since(start).Milliseconds())
	result.ResponseTime = &ping

	if err != nil {
		result.Message = fmt.Sprintf("DNS lookup failed: %v", err)
		return result, nil
	}

	if len(addrs) == 0 {
		result.Message = "DNS lookup returned no records"
		return result, nil
	}

	if expected != "" {
		found := false
		for _, addr := range addrs {
			if addr == expected {
				found = true
				break
			}
		}
		if !found {
			result.Message = fmt.Sprintf("Expected %s not in results %v", expected, addrs)
			return result, nil
		}
	}

	result.Status = models.StatusUp
	result.Message = fmt.Sprintf("Resolved %d records - %dms", len(addrs), ping)
	return result, nil
}

func (d *DNSProbe) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("hostname is required")
	}
	return nil
}
