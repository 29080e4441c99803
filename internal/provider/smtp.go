package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gopkg.in/gomail.v2"
)

// SMTPProvider keeps one SMTP session open across sends and redials after a failure.
type SMTPProvider struct {
	dialer *gomail.Dialer
	from   string

	mu     sync.Mutex
	sender gomail.SendCloser
	dial   func() (gomail.SendCloser, error)
}

func NewSMTPProvider(host string, port int, user, pass, from string) (*SMTPProvider, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive, got %d", port)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	dialer := gomail.NewDialer(host, port, user, pass)
	return &SMTPProvider{
		dialer: dialer,
		from:   from,
		dial:   dialer.Dial,
	}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, msg domain.MailMessage) (*ProviderResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, &ProviderError{Message: "invalid message", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError("send aborted", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sender == nil {
		sender, err := p.dial()
		if err != nil {
			return nil, transportError("smtp dial failed", err)
		}
		p.sender = sender
	}

	if err := gomail.Send(p.sender, m); err != nil {
		_ = p.sender.Close()
		p.sender = nil
		return nil, classifySMTPError(err)
	}

	return &ProviderResponse{StatusCode: 250}, nil
}

// Close ends the cached SMTP session, if any.
func (p *SMTPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sender == nil {
		return nil
	}
	err := p.sender.Close()
	p.sender = nil
	return err
}

var smtpReplyCode = regexp.MustCompile(`(?:^|: )([45])\d\d\b`)

// classifySMTPError treats 4xx replies as transient and 5xx replies as permanent.
// gomail flattens the underlying error into text, so the reply code is read from it.
func classifySMTPError(err error) *ProviderError {
	match := smtpReplyCode.FindStringSubmatch(err.Error())
	switch {
	case match == nil:
		return &ProviderError{Message: "smtp send failed", Transient: true, Cause: err}
	case match[1] == "5":
		return &ProviderError{Message: "smtp rejected message", Cause: err}
	default:
		return &ProviderError{Message: "smtp temporary failure", Transient: true, Cause: err}
	}
}
