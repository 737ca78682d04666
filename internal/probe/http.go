package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

// HTTPProbe implements HTTP/HTTPS checks
type HTTPProbe struct{}

func init() {
	Register(&HTTPProbe{})
}

// Name returns the probe type name
func (h *HTTPProbe) Name() string {
	return "http"
}

// Validate validates the HTTP probe configuration
func (h *HTTPProbe) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("URL is required for HTTP monitor")
	}

	if !strings.HasPrefix(monitor.URL, "http://") && !strings.HasPrefix(monitor.URL, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}

	if err := NewSSRFGuard(false).ValidateURL(monitor.URL); err != nil {
		return fmt.Errorf("URL validation failed: %w", err)
	}

	if monitor.Timeout <= 0 {
		monitor.Timeout = 30
	}

	if monitor.Interval <= 0 {
		monitor.Interval = 60
	}

	return nil
}

// Check performs the HTTP check
func (h *HTTPProbe) Check(ctx context.Context, monitor *models.Monitor) (*models.CheckResult, error) {
	result := &models.CheckResult{
		MonitorID: monitor.ID,
		Status:    models.StatusDown,
		CheckedAt: time.Now(),
	}

	method := monitor.ConfigString("method", "GET")
	headers := monitor.ConfigStringMap("headers")
	body := monitor.ConfigString("body", "")
	acceptedStatusCodes := monitor.ConfigIntSlice("accepted_status_codes", []int{200})
	keyword := monitor.ConfigString("keyword", "")
	ignoreTLS := monitor.ConfigBool("ignore_tls", false)
	followRedirects := monitor.ConfigBool("follow_redirects", true)

	guard := NewSSRFGuard(false)
	if err := guard.ValidateURL(monitor.URL); err != nil {
		result.Message = fmt.Sprintf("URL validation failed: %v", err)
		return result, nil
	}

	client := &http.Client{
		Timeout: time.Duration(monitor.Timeout) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: ignoreTLS,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !followRedirects {
				return http.ErrUseLastResponse
			}
			return guard.CheckRedirect(req)
		},
	}

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, monitor.URL, reqBody)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to create request: %v", err)
		return result, nil
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
		return result, nil
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
		return result, nil
	}

	if keyword != "" {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			result.Message = fmt.Sprintf("Failed to read response body: %v", err)
			return result, nil
		}
		if !strings.Contains(string(bodyBytes), keyword) {
			result.Message = fmt.Sprintf("Keyword %q not found", keyword)
			return result, nil
		}
	}

	result.Status = models.StatusUp
	result.Message = fmt.Sprintf("HTTP %d - %dms", code, ping)
	return result, nil
}
