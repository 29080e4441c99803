package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
)

func sampleCampaign() *domain.Campaign {
	sentAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Campaign{
		ID:          "0b8f7c1e-8c3a-4b8e-9a55-0d7c3f1b2a10",
		Title:       "March issue",
		Subject:     "What's new",
		HTML:        "<p>hi</p>",
		Status:      domain.CampaignStatusCompleted,
		ScheduledAt: sentAt.Add(-time.Hour),
		Recipients: []domain.Recipient{
			{Email: "a@example.com", Status: domain.RecipientStatusSent, AttemptCount: 1, SentAt: &sentAt},
			{Email: "b@example.com", Status: domain.RecipientStatusFailed, AttemptCount: 3, Error: "mailbox full"},
			{Email: "c@example.com", Status: domain.RecipientStatusPending},
		},
		CreatedAt: sentAt.Add(-2 * time.Hour),
		UpdatedAt: sentAt,
	}
}

func TestCreateCampaign(t *testing.T) {
	t.Parallel()

	scheduledAt := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	var gotInput service.CreateCampaignInput
	svc := &fakeCampaignService{
		createFn: func(_ context.Context, input service.CreateCampaignInput) (*domain.Campaign, error) {
			gotInput = input
			return &domain.Campaign{
				ID:          "c-1",
				Title:       input.Title,
				Subject:     input.Subject,
				HTML:        input.HTML,
				Status:      domain.CampaignStatusScheduled,
				ScheduledAt: *input.ScheduledAt,
				Recipients:  []domain.Recipient{},
			}, nil
		},
	}

	app := newTestApp(t)
	if err := RegisterCampaignRoutes(app, svc); err != nil {
		t.Fatalf("RegisterCampaignRoutes() error = %v", err)
	}

	status, body := performRequest(t, app, http.MethodPost, "/v1/campaigns", map[string]any{
		"title":       "April issue",
		"subject":     "Spring",
		"html":        "<p>spring</p>",
		"scheduledAt": scheduledAt.Format(time.RFC3339),
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", status, http.StatusCreated, body)
	}
	if gotInput.Title != "April issue" || gotInput.ScheduledAt == nil || !gotInput.ScheduledAt.Equal(scheduledAt) {
		t.Fatalf("input = %+v", gotInput)
	}

	var resp campaignResponse
	decodeJSON(t, body, &resp)
	if resp.ID != "c-1" || resp.Status != "SCHEDULED" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Recipients != nil {
		t.Fatalf("recipients = %v, want omitted on create", resp.Recipients)
	}
}

func TestCreateCampaignErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		body       any
		serviceErr error
		wantStatus int
	}{
		{name: "malformed body", body: "not-an-object", wantStatus: http.StatusBadRequest},
		{name: "validation", body: map[string]any{"title": ""}, serviceErr: fmt.Errorf("%w: title is required", domain.ErrValidation), wantStatus: http.StatusBadRequest},
		{name: "store failure", body: map[string]any{"title": "x"}, serviceErr: fmt.Errorf("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeCampaignService{
				createFn: func(context.Context, service.CreateCampaignInput) (*domain.Campaign, error) {
					return nil, tc.serviceErr
				},
			}
			app := newTestApp(t)
			if err := RegisterCampaignRoutes(app, svc); err != nil {
				t.Fatalf("RegisterCampaignRoutes() error = %v", err)
			}

			status, body := performRequest(t, app, http.MethodPost, "/v1/campaigns", tc.body)
			if status != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", status, tc.wantStatus, body)
			}
		})
	}
}

func TestGetCampaignReturnsLedgerAndCounts(t *testing.T) {
	t.Parallel()

	campaign := sampleCampaign()
	svc := &fakeCampaignService{
		getFn: func(_ context.Context, id string) (*domain.Campaign, error) {
			if id != campaign.ID {
				return nil, domain.ErrNotFound
			}
			return campaign, nil
		},
	}
	app := newTestApp(t)
	if err := RegisterCampaignRoutes(app, svc); err != nil {
		t.Fatalf("RegisterCampaignRoutes() error = %v", err)
	}

	status, body := performRequest(t, app, http.MethodGet, "/v1/campaigns/"+campaign.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}

	var resp campaignResponse
	decodeJSON(t, body, &resp)
	if len(resp.Recipients) != 3 {
		t.Fatalf("recipients = %d, want 3", len(resp.Recipients))
	}
	want := recipientCounts{Total: 3, Pending: 1, Sent: 1, Failed: 1}
	if resp.Counts != want {
		t.Fatalf("counts = %+v, want %+v", resp.Counts, want)
	}
	if resp.Recipients[1].Error != "mailbox full" || resp.Recipients[1].AttemptCount != 3 {
		t.Fatalf("failed recipient = %+v", resp.Recipients[1])
	}

	status, _ = performRequest(t, app, http.MethodGet, "/v1/campaigns/missing", nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestListCampaigns(t *testing.T) {
	t.Parallel()

	var gotParams repository.ListParams
	svc := &fakeCampaignService{
		listFn: func(_ context.Context, params repository.ListParams) ([]domain.Campaign, int64, error) {
			gotParams = params
			return []domain.Campaign{*sampleCampaign()}, 7, nil
		},
	}
	app := newTestApp(t)
	if err := RegisterCampaignRoutes(app, svc); err != nil {
		t.Fatalf("RegisterCampaignRoutes() error = %v", err)
	}

	status, body := performRequest(t, app, http.MethodGet, "/v1/campaigns?page=2&pageSize=5&status=COMPLETED", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", status, http.StatusOK, body)
	}
	if gotParams.Page != 2 || gotParams.PageSize != 5 || gotParams.Status == nil || *gotParams.Status != "COMPLETED" {
		t.Fatalf("params = %+v", gotParams)
	}

	var resp listCampaignsResponse
	decodeJSON(t, body, &resp)
	if resp.Meta != (listMeta{Page: 2, PageSize: 5, Total: 7}) {
		t.Fatalf("meta = %+v", resp.Meta)
	}
	if len(resp.Data) != 1 || resp.Data[0].Counts.Sent != 1 || resp.Data[0].Recipients != nil {
		t.Fatalf("data = %+v", resp.Data)
	}
}
