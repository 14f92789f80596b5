package service

import (
	"bitwise74/auth-api/config"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Mail struct {
	To      string
	Subject string
	HTML    string
	// Text fallback, also what the log mailer prints
	Text string
}

// Mailer delivers a single message. Implementations must honour ctx.
type Mailer interface {
	Send(ctx context.Context, m *Mail) error
}

func NewMailer(c config.Mail) (Mailer, error) {
	switch c.Provider {
	case "smtp":
		return NewSMTPMailer(c), nil
	case "sendgrid":
		return NewSendGridMailer(c), nil
	case "log":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", c.Provider)
	}
}

// SMTPMailer composes messages with gomail and delivers them over a
// connection it owns, so ctx bounds the whole exchange. Nothing is left
// running once Send returns.
type SMTPMailer struct {
	// Connection settings only, its DialAndSend can't be cancelled
	dialer  *gomail.Dialer
	from    string
	name    string
	timeout time.Duration
}

func NewSMTPMailer(c config.Mail) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(c.Host, c.Port, c.Username, c.Password),
		from:    c.Sender,
		name:    c.SenderName,
		timeout: c.Timeout,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, m *Mail) error {
	if m.To == s.from {
		return errors.New("invalid email address")
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, s.name)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Text)
	msg.AddAlternative("text/html", m.HTML)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.deliver(ctx, msg, m.To)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *SMTPMailer) deliver(ctx context.Context, msg *gomail.Message, to string) error {
	d := s.dialer
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	tlsConfig := d.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: d.Host}
	}

	var conn net.Conn
	var err error
	if d.SSL {
		conn, err = (&tls.Dialer{Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblocks any read or write in flight when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, d.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if d.LocalName != "" {
		if err := c.Hello(d.LocalName); err != nil {
			return err
		}
	}

	if !d.SSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}

	if d.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", d.Username, d.Password, d.Host)); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(s.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := msg.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendGridMailer(c config.Mail) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(c.SendGridAPIKey),
		from:   sgmail.NewEmail(c.SenderName, c.Sender),
	}
}

func (s *SendGridMailer) Send(ctx context.Context, m *Mail) error {
	msg := sgmail.NewSingleEmail(s.from, m.Subject, sgmail.NewEmail("", m.To), m.Text, m.HTML)

	res, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}

	if res.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded with status %d", res.StatusCode)
	}

	return nil
}

// LogMailer writes mails to the log instead of sending them. Meant for
// local development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m *Mail) error {
	zap.L().Info("Mail not sent, log provider in use",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Text),
	)
	return nil
}
