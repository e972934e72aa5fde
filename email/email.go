package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender is the transport side of the notification dispatcher. Handlers
// build messages with the helpers in this package and push them through a
// Sender from a background task, so a failing mail server never fails the
// order transition that triggered the notification.
type Sender interface {
	Send(to string, subject string, body string) error
}

type Mailer struct {
	address  string
	password string
	host     string
	port     string

	// SiteURL is embedded in message bodies so customers can reach
	// their tracking page.
	SiteURL string
}

func New(address, password, host, port, siteURL string) *Mailer {
	return &Mailer{
		address:  address,
		password: password,
		host:     host,
		port:     port,
		SiteURL:  siteURL,
	}
}

func (m *Mailer) Send(to string, subject string, body string) error {
	headers := []string{
		"From: CreateProResume <" + m.address + ">",
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + body

	var auth smtp.Auth
	if m.password != "" {
		auth = smtp.PlainAuth("", m.address, m.password, m.host)
	}

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.address, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
