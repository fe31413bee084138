package billetweb

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
	defaultBaseURL = "https://www.billetweb.fr/api"

	// eventsPageSize is fixed by the Billetweb API.
	eventsPageSize = 100

	// maxEventPages bounds the resolve walk over the event listing. The
	// listing is returned newest-first, so a changed event not found within
	// this many pages means the account is too large to retrieve safely.
	maxEventPages = 50
)

// Connector synchronizes Billetweb accounts. Authentication is a user id
// and an API key passed as query-string parameters. Billetweb supports
// several dated sessions under one event, including events with no explicit
// session at all.
type Connector struct {
	creds   providers.Credentials
	logger  *zap.Logger
	client  *http.Client
	fetch   *fetcher.Sequential
	baseURL string
}

// New creates a Billetweb connector.
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
	return providers.Billetweb
}

// attendeePayload is one entry of the changed-attendee feed.
type attendeePayload struct {
	ID      string `json:"id" validate:"required"`
	Event   string `json:"event" validate:"required"`
	Session string `json:"session"`
	Product string `json:"product"`
}

// eventPayload is one entry of the event listing.
type eventPayload struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// sessionPayload is one dated session of an event.
type sessionPayload struct {
	ID    string `json:"id" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end"`
}

// productPayload is one priced ticket tier. Price includes the Billetweb
// commission, which must be subtracted before declaring.
type productPayload struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Commission  float64 `json:"commission"`
}

// errorPayload is the body Billetweb returns instead of a list when a
// request is rejected. The HTTP status is 200 in that case.
type errorPayload struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

// TestConnection requests the changed-attendee feed for a far-future window,
// which is guaranteed to return zero rows on a valid account. A rejected
// key returns false; a key lacking event rights is a typed business error.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	future := time.Now().AddDate(10, 0, 0)
	var feed []attendeePayload

	err := c.getList(ctx, "/attendees", url.Values{
		"last_update": []string{fmt.Sprintf("%d", future.Unix())},
		"to":          []string{fmt.Sprintf("%d", future.Add(24*time.Hour).Unix())},
	}, &feed)
	if err != nil {
		if err == providers.ErrMissingEventRights {
			return false, err
		}
		if err == providers.ErrWrongCredentials {
			return false, nil
		}
		// Anything undistinguished degrades to false here.
		c.logger.Debug("billetweb connection test failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// GetEventsSeries lists the tickets changed since from, collects their
// unique parent event IDs, resolves those events through the newest-first
// event listing, then builds one wrapper per event.
func (c *Connector) GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error) {
	query := url.Values{
		"last_update": []string{fmt.Sprintf("%d", from.Unix())},
	}
	if to != nil {
		query.Set("to", fmt.Sprintf("%d", to.Unix()))
	}

	var changed []attendeePayload
	if err := c.getList(ctx, "/attendees", query, &changed); err != nil {
		return nil, err
	}

	targetIDs := make(map[string]struct{})
	for _, a := range changed {
		if err := providers.ValidatePayload(providers.Billetweb, a); err != nil {
			return nil, err
		}
		targetIDs[a.Event] = struct{}{}
	}
	if len(targetIDs) == 0 {
		return nil, nil
	}

	events, err := c.resolveEvents(ctx, targetIDs)
	if err != nil {
		return nil, err
	}

	wrappers := make([]models.EventSerieWrapper, 0, len(events))
	for _, ev := range events {
		wrapper, err := c.buildWrapper(ctx, ev)
		if err != nil {
			// A single failing sub-request aborts the whole pass.
			return nil, err
		}
		wrappers = append(wrappers, wrapper)
	}
	return wrappers, nil
}

// resolveEvents pages through the event listing until every target ID is
// found. Events come back newest-first, so the walk stops early once the
// target set is fully resolved; exhausting maxEventPages first fails the
// pass rather than returning a partial result.
func (c *Connector) resolveEvents(ctx context.Context, targetIDs map[string]struct{}) ([]eventPayload, error) {
	remaining := make(map[string]struct{}, len(targetIDs))
	for id := range targetIDs {
		remaining[id] = struct{}{}
	}

	var resolved []eventPayload
	for page := 1; len(remaining) > 0; page++ {
		if page > maxEventPages {
			return nil, providers.ErrTooMuchToRetrieve
		}

		var listing []eventPayload
		err := c.getList(ctx, "/events", url.Values{
			"past": []string{"1"},
			"page": []string{fmt.Sprintf("%d", page)},
		}, &listing)
		if err != nil {
			return nil, err
		}

		for _, ev := range listing {
			if err := providers.ValidatePayload(providers.Billetweb, ev); err != nil {
				return nil, err
			}
			if _, wanted := remaining[ev.ID]; wanted {
				resolved = append(resolved, ev)
				delete(remaining, ev.ID)
			}
		}

		if len(listing) < eventsPageSize {
			break
		}
	}

	if len(remaining) > 0 {
		return nil, fmt.Errorf("billetweb: %d changed events missing from the event listing", len(remaining))
	}
	return resolved, nil
}

// buildWrapper fetches sessions, products and attendees for one event and
// assembles the canonical wrapper.
func (c *Connector) buildWrapper(ctx context.Context, ev eventPayload) (models.EventSerieWrapper, error) {
	var zero models.EventSerieWrapper

	var sessions []sessionPayload
	if err := c.getList(ctx, "/event/"+ev.ID+"/dates", nil, &sessions); err != nil {
		return zero, err
	}

	var products []productPayload
	if err := c.getList(ctx, "/event/"+ev.ID+"/products", nil, &products); err != nil {
		return zero, err
	}

	var attendees []attendeePayload
	if err := c.getList(ctx, "/event/"+ev.ID+"/attendees", nil, &attendees); err != nil {
		return zero, err
	}

	events, fallbackSessionID, err := c.buildEvents(ev, sessions)
	if err != nil {
		return zero, err
	}

	categories := make([]models.TicketCategory, 0, len(products))
	for _, p := range products {
		if err := providers.ValidatePayload(providers.Billetweb, p); err != nil {
			return zero, err
		}
		category := models.TicketCategory{
			InternalTicketingSystemID: p.ID,
			Name:                      p.Name,
			Price:                     models.NetPrice(p.Price, p.Commission),
		}
		if p.Description != "" {
			desc := p.Description
			category.Description = &desc
		}
		categories = append(categories, category)
	}

	// Count tickets per (session, product) pair. Attendees on an event with
	// no explicit sessions land on the fabricated one.
	totals := make(map[string]*models.Sale)
	var order []string
	for _, a := range attendees {
		if err := providers.ValidatePayload(providers.Billetweb, a); err != nil {
			return zero, err
		}
		sessionID := a.Session
		if sessionID == "" {
			sessionID = fallbackSessionID
		}
		sale := models.Sale{
			InternalEventTicketingSystemID:          sessionID,
			InternalTicketCategoryTicketingSystemID: a.Product,
		}
		key := sale.Key()
		if existing, ok := totals[key]; ok {
			existing.Total++
			continue
		}
		sale.Total = 1
		totals[key] = &sale
		order = append(order, key)
	}

	sales := make([]models.Sale, 0, len(totals))
	for _, key := range order {
		sales = append(sales, *totals[key])
	}

	serie := models.EventSerie{
		InternalTicketingSystemID: ev.ID,
		Name:                      ev.Name,
	}
	if len(events) > 0 {
		start := events[0].StartAt
		end := events[0].StartAt
		for _, e := range events {
			if e.StartAt.Before(start) {
				start = e.StartAt
			}
			if e.EndAt != nil && e.EndAt.After(end) {
				end = *e.EndAt
			} else if e.StartAt.After(end) {
				end = e.StartAt
			}
		}
		serie.StartAt = &start
		serie.EndAt = &end
	}

	return models.EventSerieWrapper{
		Serie:            serie,
		Events:           events,
		TicketCategories: categories,
		Sales:            sales,
	}, nil
}

// buildEvents maps sessions to canonical events. An event with zero explicit
// sessions gets a single synthetic one; the fallback identifier is
// namespaced with the event ID so it can never collide with a real session.
// A session that is present but carries an unparsable date fails the pass.
func (c *Connector) buildEvents(ev eventPayload, sessions []sessionPayload) ([]models.Event, string, error) {
	fallbackSessionID := models.NamespacedID("fallback", ev.ID)

	if len(sessions) == 0 {
		return []models.Event{{
			InternalTicketingSystemID: fallbackSessionID,
			StartAt:                   time.Time{},
		}}, fallbackSessionID, nil
	}

	events := make([]models.Event, 0, len(sessions))
	for _, s := range sessions {
		if err := providers.ValidatePayload(providers.Billetweb, s); err != nil {
			return nil, "", err
		}
		start, err := time.Parse(time.RFC3339, s.Start)
		if err != nil {
			return nil, "", fmt.Errorf("unexpected billetweb payload shape: session %s start %q: %w", s.ID, s.Start, err)
		}
		event := models.Event{
			InternalTicketingSystemID: s.ID,
			StartAt:                   start,
		}
		if s.End != "" {
			end, err := time.Parse(time.RFC3339, s.End)
			if err != nil {
				return nil, "", fmt.Errorf("unexpected billetweb payload shape: session %s end %q: %w", s.ID, s.End, err)
			}
			event.EndAt = &end
		}
		events = append(events, event)
	}
	return events, fallbackSessionID, nil
}

// getList performs one authenticated GET through the sequential fetcher and
// decodes a JSON list. Billetweb rejections come back as a 200 with an
// error object instead of a list, so the body is sniffed before decoding.
func (c *Connector) getList(ctx context.Context, path string, query url.Values, out any) error {
	return c.fetch.Do(ctx, func(ctx context.Context) error {
		if query == nil {
			query = url.Values{}
		}
		query.Set("user", c.creds.AccessKey)
		query.Set("key", c.creds.SecretKey)
		query.Set("version", "1")

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
			return &providers.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		trimmed := strings.TrimSpace(string(body))
		if strings.HasPrefix(trimmed, "{") {
			var remote errorPayload
			if err := json.Unmarshal(body, &remote); err == nil && remote.Error != "" {
				return c.mapRemoteError(remote)
			}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unexpected billetweb payload shape: %w", err)
		}
		return nil
	})
}

// mapRemoteError promotes known Billetweb error signatures to typed errors.
func (c *Connector) mapRemoteError(remote errorPayload) error {
	switch strings.ToLower(remote.Error) {
	case "unauthorized", "invalid key":
		return providers.ErrWrongCredentials
	case "not_allowed", "wrong rights":
		return providers.ErrMissingEventRights
	}
	return fmt.Errorf("billetweb: %s (%s)", remote.Error, remote.Description)
}
