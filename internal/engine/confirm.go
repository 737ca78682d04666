package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
	"github.com/vigil-dev/vigil/internal/probe"
)

const confirmRedirectLimit = 5

// ProbeFunc performs the single confirmation probe. A nil result is
// treated as a failed probe.
type ProbeFunc func(ctx context.Context, m *models.Monitor) *models.CheckResult

// ConfirmedFunc is called when suspected downtime is confirmed,
// carrying the timestamp and message of the original failure
type ConfirmedFunc func(m *models.Monitor, downSince time.Time, reason string)

// Confirmer resolves suspected downtime into confirmed-down or
// transient. After a per-monitor delay it reloads the monitor and, if
// still suspect, re-probes once with a short timeout. Any probe error
// counts as still down.
type Confirmer struct {
	monitors    MonitorStore
	delay       time.Duration
	timeout     time.Duration
	onConfirmed ConfirmedFunc

	probe    ProbeFunc
	schedule func(d time.Duration, fn func())
}

// NewConfirmer creates a confirmer with the global delay and probe
// timeout. Monitors with their own confirmation delay override the
// global one at schedule time.
func NewConfirmer(monitors MonitorStore, delay, timeout time.Duration, onConfirmed ConfirmedFunc) *Confirmer {
	c := &Confirmer{
		monitors:    monitors,
		delay:       delay,
		timeout:     timeout,
		onConfirmed: onConfirmed,
	}
	c.probe = c.confirmProbe
	c.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}
	return c
}

// Schedule queues a one-shot confirmation for a monitor that just
// entered the suspect state. The original failure's timestamp and
// message are captured now so the confirmed incident reflects when the
// downtime actually began.
func (c *Confirmer) Schedule(m *models.Monitor, failure *models.CheckResult) {
	delay := c.delay
	if m.ConfirmationDelay > 0 {
		delay = time.Duration(m.ConfirmationDelay) * time.Second
	}

	monitorID := m.ID
	downSince := failure.CheckedAt
	reason := failure.Message

	c.schedule(delay, func() {
		c.confirm(monitorID, downSince, reason)
	})
}

func (c *Confirmer) confirm(monitorID int, downSince time.Time, reason string) {
	m, err := c.monitors.Get(monitorID)
	if err != nil {
		log.Printf("Confirmation skipped, failed to load monitor %d: %v", monitorID, err)
		return
	}

	if m.Status != models.StatusSuspect {
		// A scheduled check already saw the monitor healthy again;
		// record the blip without probing
		if m.Status == models.StatusUp {
			m.ConsecutiveFailures = 0
			m.TransientFailures++
			m.DownSince = nil
			if err := c.monitors.SaveStatus(m); err != nil {
				log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
			}
			log.Printf("Monitor %s (ID: %d) recovered before confirmation, recorded transient failure", m.Name, m.ID)
		}
		return
	}

	// Timestamps round-trip through the database at microsecond
	// precision, so match the failure period with a tolerance
	if m.DownSince == nil || m.DownSince.Sub(downSince).Abs() > time.Millisecond {
		// The monitor recovered and failed again before this
		// confirmation fired. The earlier failure period ended in a
		// recovery, so record its transient here and leave the current
		// period to its own confirmation.
		m.TransientFailures++
		if err := c.monitors.SaveStatus(m); err != nil {
			log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
		}
		log.Printf("Monitor %s (ID: %d) entered a new failure period, skipping stale confirmation", m.Name, m.ID)
		return
	}

	result := c.runProbe(m)
	if result != nil && result.IsUp() {
		now := time.Now()
		m.Status = models.StatusUp
		m.StatusChangedAt = &now
		m.ConsecutiveFailures = 0
		m.TransientFailures++
		m.DownSince = nil
		if err := c.monitors.SaveStatus(m); err != nil {
			log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
		}
		log.Printf("Monitor %s (ID: %d) passed confirmation, recorded transient failure", m.Name, m.ID)
		return
	}

	if result != nil && result.Message != "" {
		reason = result.Message
	}
	c.onConfirmed(m, downSince, reason)
}

// runProbe executes the confirmation probe under the short timeout.
// Panics and errors both resolve toward confirmed down.
func (c *Confirmer) runProbe(m *models.Monitor) (result *models.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Confirmation probe panicked for monitor %d: %v", m.ID, r)
			result = nil
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	return c.probe(ctx, m)
}

// confirmProbe re-issues the monitor's check once. HTTP monitors get a
// dedicated client with the confirmation timeout and a hard redirect
// cap; other types run their registered probe with the timeout
// substituted in.
func (c *Confirmer) confirmProbe(ctx context.Context, m *models.Monitor) *models.CheckResult {
	if m.Type == "http" {
		return c.confirmHTTP(ctx, m)
	}

	pt, ok := probe.Get(m.Type)
	if !ok {
		log.Printf("Confirmation probe: unknown monitor type %q", m.Type)
		return nil
	}

	clone := *m
	clone.Timeout = int(c.timeout.Seconds())
	result, err := pt.Check(ctx, &clone)
	if err != nil {
		log.Printf("Confirmation probe failed for monitor %d: %v", m.ID, err)
		return nil
	}
	return result
}

func (c *Confirmer) confirmHTTP(ctx context.Context, m *models.Monitor) *models.CheckResult {
	result := &models.CheckResult{
		MonitorID: m.ID,
		Status:    models.StatusDown,
		CheckedAt: time.Now(),
	}

	method := m.ConfigString("method", "GET")
	headers := m.ConfigStringMap("headers")
	body := m.ConfigString("body", "")
	acceptedStatusCodes := m.ConfigIntSlice("accepted_status_codes", []int{200})
	keyword := m.ConfigString("keyword", "")
	ignoreTLS := m.ConfigBool("ignore_tls", false)

	guard := probe.NewSSRFGuard(false)
	if err := guard.ValidateURL(m.URL); err != nil {
		result.Message = fmt.Sprintf("URL validation failed: %v", err)
		return result
	}

	client := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: ignoreTLS,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= confirmRedirectLimit {
				return fmt.Errorf("stopped after %d redirects", confirmRedirectLimit)
			}
			return guard.CheckRedirect(req)
		},
	}

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.URL, reqBody)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to create request: %v", err)
		return result
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := client.Do(req)
	ping := int(time.Since(start).Milliseconds())
	result.ResponseTime = &ping

	if err != nil {
		result.Message = fmt.Sprintf("Request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	result.HTTPStatus = &code

	statusOK := false
	for _, accepted := range acceptedStatusCodes {
		if code == accepted {
			statusOK = true
			break
		}
	}
	if !statusOK {
		result.Message = fmt.Sprintf("Unexpected status code: %d", code)
		return result
	}

	if keyword != "" {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			result.Message = fmt.Sprintf("Failed to read response body: %v", err)
			return result
		}
		if !strings.Contains(string(bodyBytes), keyword) {
			result.Message = fmt.Sprintf("Keyword %q not found", keyword)
			return result
		}
	}

	result.Status = models.StatusUp
	result.Message = fmt.Sprintf("HTTP %d - %dms", code, ping)
	return result
}
