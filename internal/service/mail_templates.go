package service

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

var (
	verifyTmpl = template.Must(template.New("verify").Parse(
		`<p>Hi {{.Name}},</p>
<p>Click <a href="{{.Link}}">here</a> to verify your account.</p>
<p>This link will expire in {{.ValidFor}}.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`<p>Hi {{.Name}},</p>
<p>Someone asked to reset the password of this account. Click <a href="{{.Link}}">here</a> to choose a new one.</p>
<p>This link will expire in {{.ValidFor}}. If it wasn't you, ignore this email.</p>`))
)

type mailData struct {
	Name     string
	Link     string
	ValidFor string
}

func linkWithToken(base, path, token string) string {
	return strings.TrimRight(base, "/") + path + "?token=" + url.QueryEscape(token)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}

func render(tmpl *template.Template, to, subject string, d mailData) (*Mail, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return nil, err
	}

	return &Mail{
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s\n\n%s\n\nThis link will expire in %s.", subject, d.Link, d.ValidFor),
	}, nil
}

func verificationMail(to, name, base, token string, ttl time.Duration) (*Mail, error) {
	return render(verifyTmpl, to, "Verify your email address", mailData{
		Name:     name,
		Link:     linkWithToken(base, "/verify", token),
		ValidFor: humanDuration(ttl),
	})
}

func resetMail(to, name, base, token string, ttl time.Duration) (*Mail, error) {
	return render(resetTmpl, to, "Reset your password", mailData{
		Name:     name,
		Link:     linkWithToken(base, "/reset-password", token),
		ValidFor: humanDuration(ttl),
	})
}
