package domain

import "time"

// RecipientStatus is the delivery state of one ledger entry.
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

func (s RecipientStatus) String() string { return string(s) }

// Recipient is a per-email delivery record inside a campaign ledger.
// The JSON shape is the persisted ledger contract.
type Recipient struct {
	Email        string          `json:"email"`
	Status       RecipientStatus `json:"status"`
	AttemptCount int             `json:"attemptCount"`
	Error        string          `json:"error,omitempty"`
	SentAt       *time.Time      `json:"sentAt,omitempty"`
}

func NewPendingRecipient(email string) Recipient {
	return Recipient{Email: email, Status: RecipientStatusPending}
}

// MergeRecipients appends a pending entry for every email not yet in the ledger.
// Existing entries keep their status and attempt history. It returns the merged
// ledger and the number of entries added.
func MergeRecipients(ledger []Recipient, emails []string) ([]Recipient, int) {
	seen := make(map[string]struct{}, len(ledger)+len(emails))
	merged := make([]Recipient, 0, len(ledger)+len(emails))
	for _, r := range ledger {
		seen[r.Email] = struct{}{}
		merged = append(merged, r)
	}

	added := 0
	for _, email := range emails {
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		merged = append(merged, NewPendingRecipient(email))
		added++
	}

	return merged, added
}

// CloneRecipients returns a deep copy safe to hand to persistence.
func CloneRecipients(recipients []Recipient) []Recipient {
	if recipients == nil {
		return []Recipient{}
	}
	out := make([]Recipient, len(recipients))
	for i, r := range recipients {
		out[i] = r
		if r.SentAt != nil {
			sentAt := *r.SentAt
			out[i].SentAt = &sentAt
		}
	}
	return out
}
