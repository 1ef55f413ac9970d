// Package smssvc sends text messages through a Junebug HTTP channel.
package smssvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/communication"
)

var ErrGateway = errors.New("sms gateway error")

type (
	Options struct {
		URL      string // channel messages endpoint
		Username string
		Password string
		From     string
		Fake     bool   // skip the gateway and return a random message id
	}

	JunebugClient struct {
		opts   Options
		logger core.Logger
	}

	outbound struct {
		To      string `json:"to"`
		From    string `json:"from,omitempty"`
		Content string `json:"content"`
	}

	response struct {
		Status      int    `json:"status"`
		Code        string `json:"code"`
		Description string `json:"description"`
		Result      struct {
			ID string `json:"id"`
		} `json:"result"`
	}
)

var _ communication.SMSClient = (*JunebugClient)(nil)

func NewJunebugClient(opts Options, logger core.Logger) (*JunebugClient, error) {
	checks := []vala.Checker{vala.IsNotNil(logger, "logger")}
	if !opts.Fake {
		checks = append(checks, vala.StringNotEmpty(opts.URL, "URL"))
	}
	if err := vala.BeginValidation().Validate(checks...).Check(); err != nil {
		return nil, err
	}
	return &JunebugClient{opts: opts, logger: logger}, nil
}

// OptionsFromConfig maps the junebug configuration section.
func OptionsFromConfig(conf core.JunebugConfig) Options {
	return Options{
		URL:      conf.URL,
		Username: conf.Username,
		Password: conf.Password,
		From:     conf.From,
		Fake:     conf.Fake,
	}
}

// Send posts message to msisdn and returns the id the gateway assigned to it.
func (c *JunebugClient) Send(ctx context.Context, msisdn, message string) (string, error) {
	if c.opts.Fake {
		id := uuid.New().String()
		c.logger.Debug(fmt.Sprintf("fake sms %s to %s: %s", id, msisdn, message))
		return id, nil
	}

	body, err := json.Marshal(outbound{To: msisdn, From: c.opts.From, Content: message})
	if err != nil {
		return "", errors.Wrap(err, "encoding sms")
	}
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: c.opts.URL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
	if c.opts.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.opts.Username + ":" + c.opts.Password))
		req.Headers["Authorization"] = "Basic " + creds
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "posting sms")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", errors.Wrapf(ErrGateway, "status: %d - body: %s", res.StatusCode, res.Body)
	}

	var r response
	if err = json.Unmarshal([]byte(res.Body), &r); err != nil {
		return "", errors.Wrap(err, "decoding gateway response")
	}
	if r.Result.ID == "" {
		return "", errors.Wrap(ErrGateway, "missing message id")
	}
	return r.Result.ID, nil
}
