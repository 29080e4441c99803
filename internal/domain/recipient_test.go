package domain

import (
	"testing"
	"time"
)

func TestMergeRecipientsAddsOnlyNewEmails(t *testing.T) {
	t.Parallel()

	sentAt := time.Unix(1_700_000_000, 0).UTC()
	ledger := []Recipient{
		{Email: "sent@example.com", Status: RecipientStatusSent, AttemptCount: 1, SentAt: &sentAt},
		{Email: "failed@example.com", Status: RecipientStatusFailed, AttemptCount: 3, Error: "smtp down"},
	}

	merged, added := MergeRecipients(ledger, []string{
		"sent@example.com",
		"failed@example.com",
		"new@example.com",
		"new@example.com",
		"",
	})

	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}
	if merged[0].Status != RecipientStatusSent || merged[0].AttemptCount != 1 {
		t.Fatalf("sent entry regressed: %+v", merged[0])
	}
	if merged[1].Status != RecipientStatusFailed || merged[1].Error != "smtp down" {
		t.Fatalf("failed entry regressed: %+v", merged[1])
	}
	if merged[2].Email != "new@example.com" || merged[2].Status != RecipientStatusPending || merged[2].AttemptCount != 0 {
		t.Fatalf("new entry = %+v, want pending with zero attempts", merged[2])
	}
}

func TestMergeRecipientsIsIdempotent(t *testing.T) {
	t.Parallel()

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}

	first, added := MergeRecipients(nil, emails)
	if added != 3 {
		t.Fatalf("first merge added = %d, want 3", added)
	}

	second, added := MergeRecipients(first, emails)
	if added != 0 {
		t.Fatalf("second merge added = %d, want 0", added)
	}
	if len(second) != len(first) {
		t.Fatalf("len after second merge = %d, want %d", len(second), len(first))
	}
}

func TestCloneRecipientsCopiesSentAt(t *testing.T) {
	t.Parallel()

	sentAt := time.Unix(1_700_000_000, 0).UTC()
	original := []Recipient{{Email: "a@example.com", Status: RecipientStatusSent, AttemptCount: 1, SentAt: &sentAt}}

	cloned := CloneRecipients(original)
	*original[0].SentAt = sentAt.Add(time.Hour)
	original[0].Status = RecipientStatusFailed

	if cloned[0].Status != RecipientStatusSent {
		t.Fatalf("cloned status = %s, want sent", cloned[0].Status)
	}
	if !cloned[0].SentAt.Equal(sentAt) {
		t.Fatalf("cloned sentAt = %v, want %v", cloned[0].SentAt, sentAt)
	}

	if got := CloneRecipients(nil); got == nil || len(got) != 0 {
		t.Fatalf("CloneRecipients(nil) = %#v, want empty non-nil slice", got)
	}
}
