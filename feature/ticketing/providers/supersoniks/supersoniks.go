package supersoniks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
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
	// baseURLPattern expands with the tenant domain configured in the
	// credentials' access key.
	baseURLPattern = "https://%s.supersoniks.com/api/v2"

	// pageSize is fixed by the API; pages start at 1.
	pageSize = 50

	// maxTotal is the safety ceiling checked against the meta total
	// reported on the first page.
	maxTotal = 5000
)

// Connector synchronizes Supersoniks accounts. Supersoniks is multi-tenant:
// the access key carries the tenant domain, requests authenticate with a
// bearer token against that tenant, and every native identifier is
// namespaced with the domain since IDs are only unique per tenant.
type Connector struct {
	creds   providers.Credentials
	logger  *zap.Logger
	client  *http.Client
	fetch   *fetcher.Sequential
	baseURL string
}

// New creates a Supersoniks connector for the tenant named by the access key.
func New(creds providers.Credentials, logger *zap.Logger) *Connector {
	return &Connector{
		creds:   creds,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		fetch:   fetcher.New(fetcher.DefaultDelay),
		baseURL: fmt.Sprintf(baseURLPattern, creds.AccessKey),
	}
}

// Provider returns the provider name.
func (c *Connector) Provider() string {
	return providers.Supersoniks
}

type sessionPayload struct {
	ID    string `json:"id" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end"`
}

type categoryPayload struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	TaxRate     float64 `json:"tax_rate"`
}

type salePayload struct {
	SessionID  string `json:"session_id" validate:"required"`
	CategoryID string `json:"category_id" validate:"required"`
	Count      int    `json:"count" validate:"gte=0"`
}

type eventPayload struct {
	ID         string            `json:"id" validate:"required"`
	Title      string            `json:"title" validate:"required"`
	Sessions   []sessionPayload  `json:"sessions" validate:"min=1"`
	Categories []categoryPayload `json:"categories"`
	Sales      []salePayload     `json:"sales"`
}

type listMeta struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

type listEnvelope struct {
	Data []eventPayload `json:"data"`
	Meta listMeta       `json:"meta"`
}

// TestConnection lists events for a far-future window, guaranteed empty on
// a valid tenant. A tenant domain that does not resolve, or that the
// platform does not know, is a typed business error shown to the user.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	future := time.Now().AddDate(10, 0, 0)
	_, _, err := c.listEvents(ctx, future, 1)
	if err != nil {
		if err == providers.ErrInvalidDomain {
			return false, err
		}
		if err == providers.ErrWrongCredentials {
			return false, nil
		}
		c.logger.Debug("supersoniks connection test failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// GetEventsSeries walks the one-based pages of the event listing. The meta
// total reported on the first page is checked against the safety ceiling
// before any further page is fetched.
func (c *Connector) GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error) {
	var wrappers []models.EventSerieWrapper

	for page := 1; ; page++ {
		events, meta, err := c.listEvents(ctx, from, page)
		if err != nil {
			return nil, err
		}
		if page == 1 && to == nil && meta.Total > maxTotal {
			return nil, providers.ErrTooMuchToRetrieve
		}

		for _, ev := range events {
			if err := providers.ValidatePayload(providers.Supersoniks, ev); err != nil {
				return nil, err
			}
			wrapper, err := c.buildWrapper(ev)
			if err != nil {
				return nil, err
			}
			wrappers = append(wrappers, wrapper)
		}

		if page*pageSize >= meta.Total || len(events) == 0 {
			break
		}
	}
	return wrappers, nil
}

// buildWrapper maps one event, namespacing every native ID with the tenant
// domain so two tenants producing the same native ID can never collide.
func (c *Connector) buildWrapper(ev eventPayload) (models.EventSerieWrapper, error) {
	var zero models.EventSerieWrapper
	domain := c.creds.AccessKey

	events := make([]models.Event, 0, len(ev.Sessions))
	var serieStart, serieEnd *time.Time
	for _, s := range ev.Sessions {
		start, err := time.Parse(time.RFC3339, s.Start)
		if err != nil {
			return zero, fmt.Errorf("unexpected supersoniks payload shape: session %s start %q: %w", s.ID, s.Start, err)
		}
		event := models.Event{
			InternalTicketingSystemID: models.NamespacedID(domain, s.ID),
			StartAt:                   start,
		}
		if s.End != "" {
			if end, err := time.Parse(time.RFC3339, s.End); err == nil {
				event.EndAt = &end
			}
		}
		if serieStart == nil || start.Before(*serieStart) {
			serieStart = &start
		}
		last := start
		if event.EndAt != nil {
			last = *event.EndAt
		}
		if serieEnd == nil || last.After(*serieEnd) {
			serieEnd = &last
		}
		events = append(events, event)
	}

	categories := make([]models.TicketCategory, 0, len(ev.Categories))
	rated := make([]models.RatedTicket, 0, len(ev.Categories))
	for _, cat := range ev.Categories {
		category := models.TicketCategory{
			InternalTicketingSystemID: models.NamespacedID(domain, cat.ID),
			Name:                      cat.Name,
			Price:                     cat.Price,
		}
		if cat.Description != "" {
			desc := cat.Description
			category.Description = &desc
		}
		categories = append(categories, category)
		rated = append(rated, models.RatedTicket{Price: cat.Price, TaxRate: cat.TaxRate})
	}

	sales := make([]models.Sale, 0, len(ev.Sales))
	for _, sale := range ev.Sales {
		sales = append(sales, models.Sale{
			InternalEventTicketingSystemID:          models.NamespacedID(domain, sale.SessionID),
			InternalTicketCategoryTicketingSystemID: models.NamespacedID(domain, sale.CategoryID),
			Total:                                   sale.Count,
		})
	}

	serie := models.EventSerie{
		InternalTicketingSystemID: models.NamespacedID(domain, ev.ID),
		Name:                      ev.Title,
		StartAt:                   serieStart,
		EndAt:                     serieEnd,
		TaxRate:                   models.AggregateTaxRate(rated),
	}

	return models.EventSerieWrapper{
		Serie:            serie,
		Events:           events,
		TicketCategories: categories,
		Sales:            sales,
	}, nil
}

// listEvents fetches one page of the event listing.
func (c *Connector) listEvents(ctx context.Context, from time.Time, page int) ([]eventPayload, listMeta, error) {
	var envelope listEnvelope
	err := c.fetch.Do(ctx, func(ctx context.Context) error {
		query := url.Values{
			"updated_since": []string{from.UTC().Format(time.RFC3339)},
			"page":          []string{fmt.Sprintf("%d", page)},
			"per_page":      []string{fmt.Sprintf("%d", pageSize)},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events?"+query.Encode(), http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.creds.SecretKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				// The tenant subdomain does not exist.
				return providers.ErrInvalidDomain
			}
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
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("unexpected supersoniks payload shape: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, listMeta{}, err
	}
	return envelope.Data, envelope.Meta, nil
}

// mapHTTPError promotes known Supersoniks failure signatures to typed errors.
func (c *Connector) mapHTTPError(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusNotFound && strings.Contains(lower, "unknown tenant"):
		return providers.ErrInvalidDomain
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return providers.ErrWrongCredentials
	}
	if conflict := providers.MatchConflict(body); conflict != nil {
		return conflict
	}
	return &providers.StatusError{StatusCode: status, Body: body}
}
