package service

import (
	"bitwise74/auth-api/config"
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailerProviders(t *testing.T) {
	m, err := NewMailer(config.Mail{Provider: "log"})
	require.NoError(t, err)
	assert.IsType(t, LogMailer{}, m)

	m, err = NewMailer(config.Mail{Provider: "smtp", Host: "localhost", Port: 25, Sender: "a@b.c"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	m, err = NewMailer(config.Mail{Provider: "sendgrid", SendGridAPIKey: "key", Sender: "a@b.c"})
	require.NoError(t, err)
	assert.IsType(t, &SendGridMailer{}, m)

	_, err = NewMailer(config.Mail{Provider: "fax"})
	assert.Error(t, err)
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	// Port 9 on a TEST-NET address never answers; the context must win
	m := NewSMTPMailer(config.Mail{Host: "192.0.2.1", Port: 9, Sender: "no-reply@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.Send(ctx, &Mail{To: "alice@example.com", Subject: "s", Text: "t", HTML: "<p>t</p>"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSMTPMailerRejectsSelf(t *testing.T) {
	m := NewSMTPMailer(config.Mail{Host: "localhost", Port: 25, Sender: "no-reply@example.com"})
	assert.Error(t, m.Send(context.Background(), &Mail{To: "no-reply@example.com"}))
}

// smtpServer is a single-connection SMTP responder. With stall set it reads
// commands but never answers after the greeting.
type smtpServer struct {
	port   int
	data   chan string
	closed chan struct{}
}

func startSMTP(t *testing.T, stall bool) *smtpServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := &smtpServer{
		port:   ln.Addr().(*net.TCPAddr).Port,
		data:   make(chan string, 1),
		closed: make(chan struct{}),
	}

	go func() {
		defer close(srv.closed)

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			if stall {
				continue
			}

			cmd, _, _ := strings.Cut(line, " ")
			switch strings.ToUpper(cmd) {
			case "EHLO", "HELO":
				tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT":
				tp.PrintfLine("250 OK")
			case "DATA":
				tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				srv.data <- string(body)
				tp.PrintfLine("250 Queued")
			case "QUIT":
				tp.PrintfLine("221 Bye")
				return
			default:
				tp.PrintfLine("502 Not implemented")
			}
		}
	}()

	return srv
}

func TestSMTPMailerDelivers(t *testing.T) {
	srv := startSMTP(t, false)
	m := NewSMTPMailer(config.Mail{Host: "127.0.0.1", Port: srv.port, Sender: "no-reply@example.com", SenderName: "Auth"})

	err := m.Send(context.Background(), &Mail{To: "alice@example.com", Subject: "Welcome", Text: "hello there", HTML: "<p>hello there</p>"})
	require.NoError(t, err)

	select {
	case body := <-srv.data:
		assert.Contains(t, body, "To: alice@example.com")
		assert.Contains(t, body, "Subject: Welcome")
		assert.Contains(t, body, "hello there")
	case <-time.After(time.Second):
		t.Fatal("server never received the message")
	}
}

func TestSMTPMailerAbandonsStalledServer(t *testing.T) {
	srv := startSMTP(t, true)
	m := NewSMTPMailer(config.Mail{Host: "127.0.0.1", Port: srv.port, Sender: "no-reply@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, &Mail{To: "alice@example.com", Subject: "s", Text: "t", HTML: "<p>t</p>"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	// The connection is gone by the time Send returns, nothing can follow up
	select {
	case <-srv.closed:
	case <-time.After(time.Second):
		t.Fatal("connection still open after Send returned")
	}
	assert.Empty(t, srv.data)
}

func TestSMTPMailerConfiguredTimeout(t *testing.T) {
	srv := startSMTP(t, true)
	m := NewSMTPMailer(config.Mail{Host: "127.0.0.1", Port: srv.port, Sender: "no-reply@example.com", Timeout: 100 * time.Millisecond})

	err := m.Send(context.Background(), &Mail{To: "alice@example.com", Subject: "s", Text: "t", HTML: "<p>t</p>"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-srv.closed
}

func TestVerificationMail(t *testing.T) {
	m, err := verificationMail("alice@example.com", "Alice <3", "https://auth.example.com/", "tok+en", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", m.To)
	assert.Contains(t, m.HTML, "https://auth.example.com/verify?token=tok%2Ben")
	assert.Contains(t, m.HTML, "Alice &lt;3")
	assert.Contains(t, m.Text, "24 hours")
}

func TestResetMail(t *testing.T) {
	m, err := resetMail("bob@example.com", "Bob", "http://localhost:8080", "abc", 30*time.Minute)
	require.NoError(t, err)

	assert.True(t, strings.Contains(m.Text, "http://localhost:8080/reset-password?token=abc"))
	assert.Contains(t, m.Text, "30 minutes")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "5 minutes", humanDuration(5*time.Minute))
	assert.Equal(t, "30s", humanDuration(30*time.Second))
}
