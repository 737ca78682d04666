package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

// TCPProbe checks whether a TCP port accepts connections
type TCPProbe struct{}

func init() {
	Register(&TCPProbe{})
}

func (t *TCPProbe) Name() string {
	return "tcp"
}

func (t *TCPProbe) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	result := &models.CheckResult{
		MonitorID: monitor.ID,
		Status:    models.StatusDown,
		CheckedAt: time.Now(),
	}

	host := monitor.URL
	if host == "" {
		result.Message = "No host specified"
		return result, nil
	}

	port := 80
	if p, ok := monitor.Config["port"].(float64); ok {
		port = int(p)
	}
	address := fmt.Sprintf("%s:%d", host, port)

	dialer := &net.Dialer{
		Timeout: time.Duration(monitor.Timeout) * time.Second,
	}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	ping := int(time.Since(start).Milliseconds())
	result.ResponseTime = &ping

	if err != nil {
		result.Message = fmt.Sprintf("Connection failed: %v", err)
		return result, nil
	}
	defer conn.Close()

	result.Status = models.StatusUp
	result.Message = fmt.Sprintf("Port %d is open - %dms", port, ping)
	return result, nil
}

func (t *TCPProbe) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("host is required")
	}

	if port, ok := monitor.Config["port"]; ok {
		if p, ok := port.(float64); ok {
			if p < 1 || p > 65535 {
				return fmt.Errorf("port must be between 1 and 65535")
			}
		} else {
			return fmt.Errorf("port must be a number")
		}
	}

	return nil
}
