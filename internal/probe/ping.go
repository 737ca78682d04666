package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"

	"github.com/vigil-dev/vigil/internal/models"
)

// PingProbe performs ICMP echo checks
type PingProbe struct{}

func init() {
	Register(&PingProbe{})
}

func (p *PingProbe) Name() string {
	return "ping"
}

func (p *PingProbe) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
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

	count := 4
	if c, ok := monitor.Config["packet_count"].(float64); ok {
		count = int(c)
	}

	pinger, err := ping.NewPinger(host)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to create pinger: %v", err)
		return result, nil
	}

	pinger.Count = count
	pinger.Timeout = time.Duration(monitor.Timeout) * time.Second
	pinger.SetPrivileged(monitor.ConfigBool("privileged", false))

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		result.Message = "Ping cancelled"
		return result, nil
	case err := <-done:
		if err != nil {
			result.Message = fmt.Sprintf("Ping failed: %v", err)
			return result, nil
		}
	}

	stats := pinger.Statistics()

	if stats.PacketsRecv == 0 {
		result.Message = "No packets received (100% packet loss)"
		return result, nil
	}

	avgMs := int(stats.AvgRtt.Milliseconds())
	result.ResponseTime = &avgMs

	if stats.PacketLoss > 50 {
		result.Message = fmt.Sprintf("High packet loss: %.1f%% - %dms avg", stats.PacketLoss, avgMs)
		return result, nil
	}

	result.Status = models.StatusUp
	result.Message = fmt.Sprintf("Ping OK - %dms avg (loss: %.1f%%)", avgMs, stats.PacketLoss)
	return result, nil
}

func (p *PingProbe) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("host is required")
	}

	if count, ok := monitor.Config["packet_count"]; ok {
		if c, ok := count.(float64); ok {
			if c < 1 || c > 100 {
				return fmt.Errorf("packet count must be between 1 and 100")
			}
		} else {
			return fmt.Errorf("packet_count must be a number")
		}
	}

	return nil
}
