package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type SubscriberStatus string

const (
	SubscriberStatusActive       SubscriberStatus = "ACTIVE"
	SubscriberStatusUnsubscribed SubscriberStatus = "UNSUBSCRIBED"
)

func (s SubscriberStatus) String() string { return string(s) }

func (s SubscriberStatus) IsValid() bool {
	return s == SubscriberStatusActive || s == SubscriberStatusUnsubscribed
}

func ParseSubscriberStatusFromString(s string) (SubscriberStatus, error) {
	st := SubscriberStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid subscriber status %q", ErrValidation, s)
	}
	return st, nil
}

// Subscriber is a newsletter subscription address.
type Subscriber struct {
	ID        string
	Email     string
	Status    SubscriberStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail trims, lowercases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %q", ErrValidation, raw)
	}
	return email, nil
}
