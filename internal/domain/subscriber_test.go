package domain

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "lowercases and trims", input: "  Parent@School.EDU ", want: "parent@school.edu"},
		{name: "empty", input: "  ", wantErr: true},
		{name: "display name rejected", input: "Parent <parent@school.edu>", wantErr: true},
		{name: "missing domain", input: "parent@", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeEmail(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("NormalizeEmail() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeEmail() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeEmail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSubscriberStatusFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseSubscriberStatusFromString(" active ")
	if err != nil {
		t.Fatalf("unexpected error = %v", err)
	}
	if got != SubscriberStatusActive {
		t.Fatalf("status = %s, want ACTIVE", got)
	}

	if _, err := ParseSubscriberStatusFromString("bounced"); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
