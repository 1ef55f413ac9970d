package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/digitme/digit/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

var ErrDeliveryFailed = errors.New("email delivery failed")

type SendgridService struct {
	key  string
	host string
	from *sgmail.Email
}

var _ core.EmailService = (*SendgridService)(nil)

// NewSendgridService sends through the SendGrid v3 API. host defaults to the public API.
func NewSendgridService(conf *core.Config, host ...string) *SendgridService {
	from := conf.DefaultFromEmail()
	svc := &SendgridService{
		key:  conf.SendgridApiKey,
		host: sendgridHost,
		from: sgmail.NewEmail(from.Name, from.Address),
	}
	if len(host) > 0 && host[0] != "" {
		svc.host = host[0]
	}
	return svc
}

func (svc *SendgridService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if !msg.HasRecipients() {
		return core.ErrNoRecipients
	}
	if !msg.HasContent() && !msg.HasAttachments() {
		return nil
	}

	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, svc.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(*msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Wrap(ErrDeliveryFailed, fmt.Sprintf("status: %d - body: %s", res.StatusCode, res.Body))
	}
	return nil
}

func (svc *SendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	if msg.From != nil {
		m.SetFrom(sgEmail(*msg.From))
	} else {
		m.SetFrom(svc.from)
	}
	m.AddPersonalizations(p)
	if msg.Body != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
