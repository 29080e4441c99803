package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridProvider sends through the SendGrid v3 mail API.
type SendGridProvider struct {
	key  string
	host string
	from *sgmail.Email
	api  func(rest.Request) (*rest.Response, error)
}

func NewSendGridProvider(apiKey, from string) (*SendGridProvider, error) {
	return newSendGridProvider(apiKey, from, sendGridHost)
}

func newSendGridProvider(apiKey, from, host string) (*SendGridProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}

	return &SendGridProvider{
		key:  apiKey,
		host: host,
		from: sgmail.NewEmail(addr.Name, addr.Address),
		api:  sendgrid.API,
	}, nil
}

func (p *SendGridProvider) Send(ctx context.Context, msg domain.MailMessage) (*ProviderResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, &ProviderError{Message: "invalid message", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError("send aborted", err)
	}

	req := sendgrid.GetRequest(p.key, sendGridEndpoint, p.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(p.prepare(msg))

	res, err := p.api(req)
	if err != nil {
		return nil, transportError("sendgrid request failed", err)
	}

	body := strings.TrimSpace(res.Body)
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: res.StatusCode,
			Body:       body,
			MessageID:  firstHeader(res.Headers, "X-Message-Id"),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: res.StatusCode,
		Message:    statusErrorMessage(res.StatusCode, body),
		Transient:  isTransientHTTPStatus(res.StatusCode),
	}
}

func (p *SendGridProvider) prepare(msg domain.MailMessage) *sgmail.SGMailV3 {
	personalization := sgmail.NewPersonalization()
	personalization.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(p.from)
	m.Subject = msg.Subject
	m.AddPersonalizations(personalization)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

func firstHeader(headers map[string][]string, key string) string {
	if values := http.Header(headers).Values(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
