package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gigbook/internal/auth"
	"gigbook/internal/logger"
	"gigbook/internal/models"

	"github.com/google/uuid"
)

// SmokeValidator drives one booking through a running API and checks every
// response on the way.
type SmokeValidator struct {
	baseURL string
	secret  string
	client  *http.Client
	now     func() time.Time
}

// NewSmokeValidator targets baseURL and signs its own tokens with secret.
func NewSmokeValidator(baseURL, secret string, client *http.Client) *SmokeValidator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SmokeValidator{baseURL: baseURL, secret: secret, client: client, now: time.Now}
}

// Report is what a successful run created.
type Report struct {
	VenueID     string `json:"venueId"`
	GigID       string `json:"gigId"`
	PerformerID string `json:"performerId"`
	AgreedFee   string `json:"agreedFee"`
}

// ValidateAll checks health, then books a throwaway gig end to end.
func (v *SmokeValidator) ValidateAll(ctx context.Context) (*Report, error) {
	log := logger.WithContext(ctx)

	if err := v.validateHealth(ctx); err != nil {
		return nil, fmt.Errorf("health validation failed: %w", err)
	}
	log.Info("Health endpoint valid")

	report, err := v.validateBookingFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking flow validation failed: %w", err)
	}
	log.Info("Booking flow valid", "gig_id", report.GigID)
	return report, nil
}

func (v *SmokeValidator) validateHealth(ctx context.Context) error {
	return v.call(ctx, http.MethodGet, "/health", "", nil, http.StatusOK, nil)
}

func (v *SmokeValidator) validateBookingFlow(ctx context.Context) (*Report, error) {
	run := uuid.NewString()[:8]
	venueUser := "smoke-venue-" + run
	musicianUser := "smoke-musician-" + run

	var venue models.VenueProfile
	if err := v.call(ctx, http.MethodPost, "/api/venues", venueUser,
		models.CreateVenueRequest{Name: "Smoke venue " + run}, http.StatusCreated, &venue); err != nil {
		return nil, err
	}

	var gig models.Gig
	if err := v.call(ctx, http.MethodPost, "/api/gigs", venueUser, models.CreateGigRequest{
		VenueID:   venue.ID,
		Title:     "Smoke gig " + run,
		Budget:    "150",
		StartTime: v.now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Hour),
	}, http.StatusCreated, &gig); err != nil {
		return nil, err
	}

	var musician models.MusicianProfile
	if err := v.call(ctx, http.MethodPost, "/api/musicians", musicianUser,
		models.CreateMusicianRequest{Name: "Smoke musician " + run}, http.StatusCreated, &musician); err != nil {
		return nil, err
	}

	gigPath := "/api/gigs/" + gig.ID
	if err := v.call(ctx, http.MethodPost, gigPath+"/apply", musicianUser,
		models.ApplyRequest{PerformerID: musician.ID}, http.StatusOK, nil); err != nil {
		return nil, err
	}

	var accepted models.ApplicantsResponse
	if err := v.call(ctx, http.MethodPost, gigPath+"/accept", venueUser,
		models.ApplicantActionRequest{PerformerID: musician.ID, Side: models.RoleVenue}, http.StatusOK, &accepted); err != nil {
		return nil, err
	}
	if accepted.AgreedFee == "" {
		return nil, fmt.Errorf("POST %s/accept: expected an agreed fee", gigPath)
	}

	// A performer cannot list the venue's gigs.
	if err := v.call(ctx, http.MethodGet, "/api/venues/"+venue.ID+"/gigs", musicianUser, nil, http.StatusForbidden, nil); err != nil {
		return nil, err
	}

	if err := v.call(ctx, http.MethodDelete, gigPath, venueUser, nil, http.StatusOK, nil); err != nil {
		return nil, err
	}

	return &Report{VenueID: venue.ID, GigID: gig.ID, PerformerID: musician.ID, AgreedFee: accepted.AgreedFee}, nil
}

func (v *SmokeValidator) call(ctx context.Context, method, path, user string, body any, want int, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		token, _, err := auth.IssueToken(v.secret, user, 10*time.Minute, v.now())
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
