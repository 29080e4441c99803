package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a newsletter campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusSending   CampaignStatus = "SENDING"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusCompleted, CampaignStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the campaign is never picked up again without external intervention.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

// CanTransitionTo reports whether the dispatch lifecycle allows moving from s to next.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignStatusScheduled:
		return next == CampaignStatusSending
	case CampaignStatusSending:
		return next == CampaignStatusCompleted || next == CampaignStatusFailed
	}
	return false
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// Campaign is one newsletter broadcast job with its recipient ledger.
type Campaign struct {
	ID          string
	Title       string
	Subject     string
	HTML        string
	Status      CampaignStatus
	ScheduledAt time.Time
	Recipients  []Recipient
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(c.HTML) == "" {
		return fmt.Errorf("%w: html is required", ErrValidation)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, c.Status)
	}
	return nil
}

// IsDue reports whether the scheduler should claim the campaign at now.
func (c *Campaign) IsDue(now time.Time) bool {
	return c.Status == CampaignStatusScheduled && !c.ScheduledAt.After(now)
}

// RecipientCounts tallies ledger entries by status.
func (c *Campaign) RecipientCounts() map[RecipientStatus]int {
	counts := map[RecipientStatus]int{
		RecipientStatusPending: 0,
		RecipientStatusSent:    0,
		RecipientStatusFailed:  0,
	}
	for i := range c.Recipients {
		counts[c.Recipients[i].Status]++
	}
	return counts
}

// MailMessage is a single outbound email.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
}

func (m MailMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient address is required", ErrValidation)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("%w: html body is required", ErrValidation)
	}
	return nil
}
