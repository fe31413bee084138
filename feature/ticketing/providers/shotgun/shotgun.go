package shotgun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ticketing-sync/core/fetcher"
	"ticketing-sync/feature/ticketing/models"
	"ticketing-sync/feature/ticketing/providers"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBaseURL = "https://api.shotgun.live/v1"

	// eventsPageSize is fixed by the Shotgun API; pages start at 0.
	eventsPageSize = 100

	// maxEvents is the safety ceiling checked against the cheap count
	// endpoint before any event page is fetched.
	maxEvents = 5000
)

// ticketTypeCache is the process-wide ticket-type mapping. The mapping
// rarely changes, so it is populated at most once per process lifetime and
// shared across connector instances; singleflight keeps concurrent callers
// from issuing the lookup redundantly, and a failed population leaves the
// cache empty for the next caller instead of deadlocking.
var ticketTypeCache = struct {
	mu     sync.RWMutex
	types  map[string]ticketTypePayload
	loaded bool
	sf     singleflight.Group
}{}

// resetTicketTypeCache clears the shared mapping; tests only.
func resetTicketTypeCache() {
	ticketTypeCache.mu.Lock()
	ticketTypeCache.types = nil
	ticketTypeCache.loaded = false
	ticketTypeCache.mu.Unlock()
}

// Connector synchronizes Shotgun accounts. Authentication is an organizer
// id and a token passed as query-string parameters. Shotgun has exactly one
// physical occurrence per serie and reports tax per ticket.
type Connector struct {
	creds   providers.Credentials
	logger  *zap.Logger
	client  *http.Client
	fetch   *fetcher.Sequential
	baseURL string
}

// New creates a Shotgun connector.
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
	return providers.Shotgun
}

type countPayload struct {
	Count int `json:"count" validate:"gte=0"`
}

type eventPayload struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time"`
}

// ticketPayload is one sold ticket. Price includes the marketplace fee,
// which must be subtracted before declaring.
type ticketPayload struct {
	ID       string  `json:"id" validate:"required"`
	TypeID   string  `json:"type_id" validate:"required"`
	Price    float64 `json:"price"`
	Fee      float64 `json:"fee"`
	TaxRate  float64 `json:"tax_rate"`
	Refunded bool    `json:"refunded"`
}

type ticketTypePayload struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// TestConnection fetches the event count for a far-future window, which is
// cheap and returns zero rows on a valid account.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	future := time.Now().AddDate(10, 0, 0)
	if _, err := c.fetchCount(ctx, future); err != nil {
		if err == providers.ErrFirewallBlocked {
			return false, err
		}
		if err == providers.ErrWrongCredentials {
			return false, nil
		}
		c.logger.Debug("shotgun connection test failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// GetEventsSeries fetches the total count first, refuses to paginate past
// the safety ceiling, then walks the zero-based event pages and builds one
// wrapper per event.
func (c *Connector) GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error) {
	count, err := c.fetchCount(ctx, from)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if to == nil && count > maxEvents {
		return nil, providers.ErrTooMuchToRetrieve
	}

	types, err := c.ticketTypes(ctx)
	if err != nil {
		return nil, err
	}

	var wrappers []models.EventSerieWrapper
	fetched := 0
	for page := 0; fetched < count; page++ {
		var events []eventPayload
		query := url.Values{
			"since": []string{fmt.Sprintf("%d", from.Unix())},
			"page":  []string{fmt.Sprintf("%d", page)},
			"limit": []string{fmt.Sprintf("%d", eventsPageSize)},
		}
		if to != nil {
			query.Set("until", fmt.Sprintf("%d", to.Unix()))
		}
		if err := c.getJSON(ctx, "/organizers/"+c.creds.AccessKey+"/events", query, &events); err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		fetched += len(events)

		for _, ev := range events {
			if err := providers.ValidatePayload(providers.Shotgun, ev); err != nil {
				return nil, err
			}
			wrapper, err := c.buildWrapper(ctx, ev, types)
			if err != nil {
				return nil, err
			}
			wrappers = append(wrappers, wrapper)
		}
	}
	return wrappers, nil
}

func (c *Connector) fetchCount(ctx context.Context, from time.Time) (int, error) {
	var payload countPayload
	query := url.Values{"since": []string{fmt.Sprintf("%d", from.Unix())}}
	if err := c.getJSON(ctx, "/organizers/"+c.creds.AccessKey+"/events/count", query, &payload); err != nil {
		return 0, err
	}
	if err := providers.ValidatePayload(providers.Shotgun, payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

// buildWrapper fetches one event's tickets and assembles a 1:1 wrapper with
// per-category sales and a reconciled tax rate.
func (c *Connector) buildWrapper(ctx context.Context, ev eventPayload, types map[string]ticketTypePayload) (models.EventSerieWrapper, error) {
	var zero models.EventSerieWrapper

	var tickets []ticketPayload
	if err := c.getJSON(ctx, "/events/"+ev.ID+"/tickets", nil, &tickets); err != nil {
		return zero, err
	}

	start, err := time.Parse(time.RFC3339, ev.StartTime)
	if err != nil {
		return zero, fmt.Errorf("unexpected shotgun payload shape: event %s start_time %q: %w", ev.ID, ev.StartTime, err)
	}

	event := models.Event{
		InternalTicketingSystemID: ev.ID,
		StartAt:                   start,
	}
	if ev.EndTime != "" {
		if end, err := time.Parse(time.RFC3339, ev.EndTime); err == nil {
			event.EndAt = &end
		}
	}

	totals := make(map[string]int)
	var typeOrder []string
	var rated []models.RatedTicket
	for _, t := range tickets {
		if err := providers.ValidatePayload(providers.Shotgun, t); err != nil {
			return zero, err
		}
		if t.Refunded {
			continue
		}
		if _, seen := totals[t.TypeID]; !seen {
			typeOrder = append(typeOrder, t.TypeID)
		}
		totals[t.TypeID]++
		rated = append(rated, models.RatedTicket{
			Price:   models.NetPrice(t.Price, t.Fee),
			TaxRate: t.TaxRate,
		})
	}

	categories := make([]models.TicketCategory, 0, len(typeOrder))
	sales := make([]models.Sale, 0, len(typeOrder))
	for _, typeID := range typeOrder {
		category := models.TicketCategory{
			InternalTicketingSystemID: typeID,
			Name:                      typeID,
		}
		if def, ok := types[typeID]; ok {
			category.Name = def.Name
			if def.Description != "" {
				desc := def.Description
				category.Description = &desc
			}
		}
		// Category price is the net price observed on its tickets.
		for _, t := range tickets {
			if t.TypeID == typeID && !t.Refunded {
				category.Price = models.NetPrice(t.Price, t.Fee)
				break
			}
		}
		categories = append(categories, category)
		sales = append(sales, models.Sale{
			InternalEventTicketingSystemID:          ev.ID,
			InternalTicketCategoryTicketingSystemID: typeID,
			Total:                                   totals[typeID],
		})
	}

	serie := models.EventSerie{
		InternalTicketingSystemID: ev.ID,
		Name:                      ev.Title,
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

// ticketTypes returns the shared ticket-type mapping, populating it on
// first use.
func (c *Connector) ticketTypes(ctx context.Context) (map[string]ticketTypePayload, error) {
	ticketTypeCache.mu.RLock()
	if ticketTypeCache.loaded {
		types := ticketTypeCache.types
		ticketTypeCache.mu.RUnlock()
		return types, nil
	}
	ticketTypeCache.mu.RUnlock()

	result, err, _ := ticketTypeCache.sf.Do("ticket-types", func() (any, error) {
		ticketTypeCache.mu.RLock()
		if ticketTypeCache.loaded {
			types := ticketTypeCache.types
			ticketTypeCache.mu.RUnlock()
			return types, nil
		}
		ticketTypeCache.mu.RUnlock()

		var listing []ticketTypePayload
		if err := c.getJSON(ctx, "/ticket-types", nil, &listing); err != nil {
			return nil, err
		}

		types := make(map[string]ticketTypePayload, len(listing))
		for _, def := range listing {
			if err := providers.ValidatePayload(providers.Shotgun, def); err != nil {
				return nil, err
			}
			types[def.ID] = def
		}

		ticketTypeCache.mu.Lock()
		ticketTypeCache.types = types
		ticketTypeCache.loaded = true
		ticketTypeCache.mu.Unlock()
		return types, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]ticketTypePayload), nil
}

// getJSON performs one authenticated GET through the sequential fetcher.
func (c *Connector) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.fetch.Do(ctx, func(ctx context.Context) error {
		if query == nil {
			query = url.Values{}
		}
		query.Set("token", c.creds.SecretKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

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
			return fmt.Errorf("unexpected shotgun payload shape: %w", err)
		}
		return nil
	})
}

// mapHTTPError promotes known Shotgun failure signatures to typed errors.
// A firewall challenge comes back as an HTML page, never as JSON.
func (c *Connector) mapHTTPError(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "<html") && (status == http.StatusForbidden || status == http.StatusServiceUnavailable):
		return providers.ErrFirewallBlocked
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return providers.ErrWrongCredentials
	}
	return &providers.StatusError{StatusCode: status, Body: body}
}
