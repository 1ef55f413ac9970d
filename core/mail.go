package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var ErrNoRecipients = errors.New("email has no recipients")

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		From        *mail.Address // defaults to the service sender when nil
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		Body        string // text/plain
		Attachments []Attachment
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// Send delivers msg synchronously and reports delivery failures.
		Send(ctx context.Context, msg *EmailMessage) error
	}
)

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}

	switch {
	case len(ct) > 0:
		at.ContentType = ct[0]
	case mime.TypeByExtension(filepath.Ext(filename)) != "":
		at.ContentType = mime.TypeByExtension(filepath.Ext(filename))
	default:
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.Body != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// MailManagers sends a plain text message to the configured site managers.
func MailManagers(ctx context.Context, svc EmailService, conf *Config, subject, body string) error {
	if len(conf.Managers) == 0 {
		return nil
	}
	from := mail.Address{Address: conf.ReportFromEmail}
	return svc.Send(ctx, &EmailMessage{
		From:    &from,
		To:      conf.Managers,
		Subject: subject,
		Body:    body,
	})
}
