package dice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ticketing-sync/core/fetcher"
	"ticketing-sync/feature/ticketing/models"
	"ticketing-sync/feature/ticketing/providers"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://partners-endpoint.dice.fm/graphql"

	// pageSize is the connection page size requested per cursor step.
	pageSize = 50

	// maxPages bounds the cursor walk; Dice never reports a total up front.
	maxPages = 100
)

const eventsQuery = `query ChangedEvents($first: Int!, $after: String, $since: DateTime!) {
  viewer {
    events(first: $first, after: $after, updatedSince: $since) {
      pageInfo { hasNextPage endCursor }
      nodes {
        id
        name
        date
        endDate
        sales {
          grossRevenue
          netRevenue
          items { price taxRate count }
        }
      }
    }
  }
}`

const viewerQuery = `query Viewer { viewer { id } }`

// Connector synchronizes Dice accounts through their partner GraphQL API
// with a bearer token. Dice has exactly one physical occurrence per serie
// and reports sales pre-aggregated at event level, so wrappers carry no
// Sale rows.
type Connector struct {
	creds   providers.Credentials
	logger  *zap.Logger
	client  *http.Client
	fetch   *fetcher.Sequential
	baseURL string
}

// New creates a Dice connector.
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
	return providers.Dice
}

type saleItemPayload struct {
	Price   float64 `json:"price"`
	TaxRate float64 `json:"taxRate"`
	Count   int     `json:"count"`
}

type salesPayload struct {
	GrossRevenue float64           `json:"grossRevenue"`
	NetRevenue   float64           `json:"netRevenue"`
	Items        []saleItemPayload `json:"items"`
}

type eventNode struct {
	ID      string       `json:"id" validate:"required"`
	Name    string       `json:"name" validate:"required"`
	Date    string       `json:"date" validate:"required"`
	EndDate string       `json:"endDate"`
	Sales   salesPayload `json:"sales"`
}

type eventsConnection struct {
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []eventNode `json:"nodes"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// TestConnection runs the cheapest possible query. Dice answers invalid
// tokens with a GraphQL error rather than a non-2xx status.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	var data struct {
		Viewer *struct {
			ID string `json:"id"`
		} `json:"viewer"`
	}
	if err := c.query(ctx, viewerQuery, nil, &data); err != nil {
		if err == providers.ErrWrongCredentials {
			return false, nil
		}
		c.logger.Debug("dice connection test failed", zap.Error(err))
		return false, nil
	}
	return data.Viewer != nil, nil
}

// GetEventsSeries chains cursors through the changed-event connection and
// maps each node to a 1:1 serie/event wrapper with pre-aggregated revenue.
func (c *Connector) GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error) {
	var wrappers []models.EventSerieWrapper

	cursor := ""
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, providers.ErrTooMuchToRetrieve
		}

		variables := map[string]any{
			"first": pageSize,
			"since": from.UTC().Format(time.RFC3339),
		}
		if cursor != "" {
			variables["after"] = cursor
		}

		var data struct {
			Viewer struct {
				Events eventsConnection `json:"events"`
			} `json:"viewer"`
		}
		if err := c.query(ctx, eventsQuery, variables, &data); err != nil {
			return nil, err
		}

		connection := data.Viewer.Events
		for _, node := range connection.Nodes {
			if err := providers.ValidatePayload(providers.Dice, node); err != nil {
				return nil, err
			}
			wrapper, err := c.buildWrapper(node, to)
			if err != nil {
				return nil, err
			}
			if wrapper != nil {
				wrappers = append(wrappers, *wrapper)
			}
		}

		if !connection.PageInfo.HasNextPage {
			break
		}
		cursor = connection.PageInfo.EndCursor
	}

	return wrappers, nil
}

// buildWrapper maps one event node. Serie and event collapse 1:1, so the
// event reuses the serie identifier.
func (c *Connector) buildWrapper(node eventNode, to *time.Time) (*models.EventSerieWrapper, error) {
	start, err := time.Parse(time.RFC3339, node.Date)
	if err != nil {
		return nil, fmt.Errorf("unexpected dice payload shape: event %s date %q: %w", node.ID, node.Date, err)
	}
	if to != nil && start.After(*to) {
		return nil, nil
	}

	event := models.Event{
		InternalTicketingSystemID: node.ID,
		StartAt:                   start,
	}
	if node.EndDate != "" {
		if end, err := time.Parse(time.RFC3339, node.EndDate); err == nil {
			event.EndAt = &end
		}
	}

	gross := node.Sales.GrossRevenue
	net := node.Sales.NetRevenue
	event.TicketingRevenueIncludingTaxes = &gross
	event.TicketingRevenueExcludingTaxes = &net

	rated := make([]models.RatedTicket, 0, len(node.Sales.Items))
	var prices []float64
	for _, item := range node.Sales.Items {
		for i := 0; i < item.Count; i++ {
			prices = append(prices, item.Price)
		}
		rated = append(rated, models.RatedTicket{Price: item.Price, TaxRate: item.TaxRate})
	}
	event.TicketingRevenueTaxRate = models.AggregateTaxRate(rated)

	free, paid := models.CountTickets(prices)
	event.FreeTickets = &free
	event.PaidTickets = &paid

	serie := models.EventSerie{
		InternalTicketingSystemID: node.ID,
		Name:                      node.Name,
		StartAt:                   &start,
		EndAt:                     event.EndAt,
	}

	return &models.EventSerieWrapper{
		Serie:  serie,
		Events: []models.Event{event},
	}, nil
}

// query posts one GraphQL document through the sequential fetcher.
func (c *Connector) query(ctx context.Context, document string, variables map[string]any, out any) error {
	return c.fetch.Do(ctx, func(ctx context.Context) error {
		payload, err := json.Marshal(map[string]any{
			"query":     document,
			"variables": variables,
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.creds.SecretKey)
		req.Header.Set("Content-Type", "application/json")

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
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return providers.ErrWrongCredentials
			}
			return &providers.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []graphQLError  `json:"errors"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("unexpected dice payload shape: %w", err)
		}
		if len(envelope.Errors) > 0 {
			return c.mapGraphQLError(envelope.Errors[0])
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("unexpected dice payload shape: %w", err)
		}
		return nil
	})
}

// mapGraphQLError promotes known Dice error messages to typed errors.
func (c *Connector) mapGraphQLError(remote graphQLError) error {
	message := strings.ToLower(remote.Message)
	switch {
	case strings.Contains(message, "not authorized"), strings.Contains(message, "invalid token"):
		return providers.ErrWrongCredentials
	}
	if conflict := providers.MatchConflict(remote.Message); conflict != nil {
		return conflict
	}
	return fmt.Errorf("dice: %s", remote.Message)
}
