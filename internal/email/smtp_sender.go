package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender envia correos HTML via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
	now      func() time.Time
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		useTLS:   useTLS,
		now:      time.Now,
	}, nil
}

func (s *SMTPSender) SendVerificationOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	minutes := int(math.Ceil(expiresAt.Sub(s.now()).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	body, err := render("otp", struct {
		Code    string
		Minutes int
	}{code, minutes})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectOTP, body)
}

func (s *SMTPSender) SendPasswordChanged(ctx context.Context, toEmail string) error {
	body, err := render("password_changed", nil)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectPasswordChanged, body)
}

func (s *SMTPSender) SendUsernameChanged(ctx context.Context, toEmail, oldUsername, newUsername string) error {
	body, err := render("username_changed", struct{ Old, New string }{oldUsername, newUsername})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectUsernameChanged, body)
}

func (s *SMTPSender) SendAccountDeleted(ctx context.Context, toEmail string) error {
	body, err := render("account_deleted", nil)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectAccountDeleted, body)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.from, s.fromName, toEmail, subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if !s.useTLS {
		return smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg))
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(toEmail); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
