package yurplan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticketing-sync/core/fetcher"
	"ticketing-sync/feature/ticketing/models"
	"ticketing-sync/feature/ticketing/providers"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.yurplan.com/v1"

	// clientID identifies this integration on the Yurplan OAuth2 endpoint.
	clientID = "ticketing-sync"

	// pageSize is the offset/limit step of the event listing.
	pageSize = 50

	// maxTotal is the safety ceiling checked against the paging total
	// reported on the first page.
	maxTotal = 5000
)

// Connector synchronizes Yurplan accounts. Authentication is an OAuth2
// password grant: the access key carries the account username and the
// secret key its password; the bearer token is fetched lazily and reused
// until it expires.
type Connector struct {
	creds   providers.Credentials
	logger  *zap.Logger
	client  *http.Client
	fetch   *fetcher.Sequential
	baseURL string

	token       string
	tokenExpiry time.Time
}

// New creates a Yurplan connector.
func New(creds providers.Credentials, logger *zap.Logger) *Connector {
	return &Connector{
		creds:   creds,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		fetch:   fetcher.New(fetcher.DefaultDelay),
		baseURL: defaultBaseURL,
	}
}

// Provider returns the provider name.
func (c *Connector) Provider() string {
	return providers.Yurplan
}

type tokenPayload struct {
	AccessToken string `json:"access_token" validate:"required"`
	ExpiresIn   int    `json:"expires_in"`
}

type eventPayload struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end"`
}

type ticketTypePayload struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	TaxRate     float64 `json:"tax_rate"`
	SoldCount   int     `json:"sold_count" validate:"gte=0"`
}

type eventListEnvelope struct {
	Data   []eventPayload `json:"data"`
	Paging struct {
		Total int `json:"total"`
	} `json:"paging"`
}

type ticketTypeEnvelope struct {
	Data []ticketTypePayload `json:"data"`
}

// TestConnection exercises the token endpoint only. An invalid grant means
// wrong credentials; a token without the events scope is a typed business
// error.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	if err := c.ensureToken(ctx); err != nil {
		if err == providers.ErrMissingEventRights {
			return false, err
		}
		if err == providers.ErrWrongCredentials {
			return false, nil
		}
		c.logger.Debug("yurplan connection test failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// GetEventsSeries pages the event listing with offset/limit and builds one
// 1:1 wrapper per event from its ticket-type listing.
func (c *Connector) GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	var wrappers []models.EventSerieWrapper
	for offset := 0; ; offset += pageSize {
		query := url.Values{
			"updated_from": []string{from.UTC().Format(time.RFC3339)},
			"offset":       []string{fmt.Sprintf("%d", offset)},
			"limit":        []string{fmt.Sprintf("%d", pageSize)},
		}
		if to != nil {
			query.Set("updated_to", to.UTC().Format(time.RFC3339))
		}

		var envelope eventListEnvelope
		if err := c.getJSON(ctx, "/events", query, &envelope); err != nil {
			return nil, err
		}
		if offset == 0 && to == nil && envelope.Paging.Total > maxTotal {
			return nil, providers.ErrTooMuchToRetrieve
		}

		for _, ev := range envelope.Data {
			if err := providers.ValidatePayload(providers.Yurplan, ev); err != nil {
				return nil, err
			}
			wrapper, err := c.buildWrapper(ctx, ev)
			if err != nil {
				return nil, err
			}
			wrappers = append(wrappers, wrapper)
		}

		if offset+pageSize >= envelope.Paging.Total || len(envelope.Data) == 0 {
			break
		}
	}
	return wrappers, nil
}

// buildWrapper fetches one event's ticket types and assembles the wrapper.
// Serie and event collapse 1:1; the tax rate comes from the per-type rates
// with mixed non-zero rates recorded as indeterminate.
func (c *Connector) buildWrapper(ctx context.Context, ev eventPayload) (models.EventSerieWrapper, error) {
	var zero models.EventSerieWrapper

	var envelope ticketTypeEnvelope
	if err := c.getJSON(ctx, "/events/"+ev.ID+"/ticket-types", nil, &envelope); err != nil {
		return zero, err
	}

	start, err := time.Parse(time.RFC3339, ev.Start)
	if err != nil {
		return zero, fmt.Errorf("unexpected yurplan payload shape: event %s start %q: %w", ev.ID, ev.Start, err)
	}

	event := models.Event{
		InternalTicketingSystemID: ev.ID,
		StartAt:                   start,
	}
	if ev.End != "" {
		if end, err := time.Parse(time.RFC3339, ev.End); err == nil {
			event.EndAt = &end
		}
	}

	categories := make([]models.TicketCategory, 0, len(envelope.Data))
	sales := make([]models.Sale, 0, len(envelope.Data))
	var rated []models.RatedTicket
	for _, tt := range envelope.Data {
		if err := providers.ValidatePayload(providers.Yurplan, tt); err != nil {
			return zero, err
		}
		category := models.TicketCategory{
			InternalTicketingSystemID: tt.ID,
			Name:                      tt.Name,
			Price:                     tt.Price,
		}
		if tt.Description != "" {
			desc := tt.Description
			category.Description = &desc
		}
		categories = append(categories, category)

		if tt.SoldCount > 0 {
			sales = append(sales, models.Sale{
				InternalEventTicketingSystemID:          ev.ID,
				InternalTicketCategoryTicketingSystemID: tt.ID,
				Total:                                   tt.SoldCount,
			})
		}
		for i := 0; i < tt.SoldCount; i++ {
			rated = append(rated, models.RatedTicket{Price: tt.Price, TaxRate: tt.TaxRate})
		}
	}

	serie := models.EventSerie{
		InternalTicketingSystemID: ev.ID,
		Name:                      ev.Name,
		StartAt:                   &start,
		EndAt:                     event.EndAt,
		TaxRate:                   models.AggregateTaxRate(rated),
	}

	return models.EventSerieWrapper{
		Serie:            serie,
		Events:           []models.Event{event},
		TicketCategories: categories,
		Sales:            sales,
	}, nil
}

// ensureToken fetches the OAuth2 password-grant token when missing or
// within a minute of expiring.
func (c *Connector) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return nil
	}

	return c.fetch.Do(ctx, func(ctx context.Context) error {
		form := url.Values{}
		form.Set("grant_type", "password")
		form.Set("client_id", clientID)
		form.Set("username", c.creds.AccessKey)
		form.Set("password", c.creds.SecretKey)
		form.Set("scope", "events tickets")

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return c.mapHTTPError(resp.StatusCode, string(body))
		}

		var token tokenPayload
		if err := json.Unmarshal(body, &token); err != nil {
			return fmt.Errorf("unexpected yurplan payload shape: %w", err)
		}
		if err := providers.ValidatePayload(providers.Yurplan, token); err != nil {
			return err
		}

		c.token = token.AccessToken
		expires := token.ExpiresIn
		if expires <= 0 {
			expires = 3600
		}
		c.tokenExpiry = time.Now().Add(time.Duration(expires) * time.Second)
		return nil
	})
}

// getJSON performs one bearer-authenticated GET through the sequential
// fetcher.
func (c *Connector) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.fetch.Do(ctx, func(ctx context.Context) error {
		target := c.baseURL + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return c.mapHTTPError(resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unexpected yurplan payload shape: %w", err)
		}
		return nil
	})
}

// mapHTTPError promotes known Yurplan failure signatures to typed errors.
func (c *Connector) mapHTTPError(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "invalid_grant"), status == http.StatusUnauthorized:
		return providers.ErrWrongCredentials
	case status == http.StatusForbidden && strings.Contains(lower, "insufficient scope"):
		return providers.ErrMissingEventRights
	}
	if conflict := providers.MatchConflict(body); conflict != nil {
		return conflict
	}
	return &providers.StatusError{StatusCode: status, Body: body}
}
