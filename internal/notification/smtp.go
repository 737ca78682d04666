package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/vigil-dev/vigil/internal/models"
)

// SMTPProvider sends email notifications
type SMTPProvider struct{}

func init() {
	RegisterProvider(&SMTPProvider{})
}

func (s *SMTPProvider) Name() string {
	return "smtp"
}

func (s *SMTPProvider) Send(ctx context.Context, channel *models.Notification, message *Message) error {
	host, _ := channel.Config["smtp_host"].(string)
	port, _ := channel.Config["smtp_port"].(float64)
	username, _ := channel.Config["smtp_username"].(string)
	password, _ := channel.Config["smtp_password"].(string)
	from, _ := channel.Config["from_email"].(string)
	to, _ := channel.Config["to_email"].(string)
	useTLS, _ := channel.Config["use_tls"].(bool)

	if host == "" || from == "" || to == "" {
		return fmt.Errorf("missing required SMTP configuration")
	}

	if port == 0 {
		if useTLS {
			port = 587
		} else {
			port = 25
		}
	}

	subject := message.Title
	body := FormatMessage(message)

	msg := fmt.Sprintf("From: %s\r\n", from)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/plain; charset=UTF-8\r\n"
	msg += "\r\n"
	msg += body

	recipients := strings.Split(to, ",")
	for i, r := range recipients {
		recipients[i] = strings.TrimSpace(r)
	}

	addr := fmt.Sprintf("%s:%d", host, int(port))

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	if err := smtp.SendMail(addr, auth, from, recipients, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *SMTPProvider) Validate(config map[string]interface{}) error {
	host, ok := config["smtp_host"].(string)
	if !ok || host == "" {
		return fmt.Errorf("smtp_host is required")
	}
	from, ok := config["from_email"].(string)
	if !ok || from == "" {
		return fmt.Errorf("from_email is required")
	}
	to, ok := config["to_email"].(string)
	if !ok || to == "" {
		return fmt.Errorf("to_email is required")
	}
	return nil
}
