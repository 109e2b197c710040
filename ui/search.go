package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-promotores/models"
)

// ErrEmptyQuery is returned when a search is started with blank input.
var ErrEmptyQuery = errors.New("ui: empty query")

// Searcher fetches the records for a raw OP query.
type Searcher interface {
	Search(ctx context.Context, op string) ([]models.Record, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, op string) ([]models.Record, error)

func (f SearcherFunc) Search(ctx context.Context, op string) ([]models.Record, error) {
	return f(ctx, op)
}

// SearchController runs a search and reports it through the alert region
// and the results table. The query is sent as typed; the server
// normalizes it.
type SearchController struct {
	searcher Searcher
	alerts   *AlertPresenter
	show     func(Table)
}

// NewSearchController wires a controller. show receives rendered results.
func NewSearchController(searcher Searcher, alerts *AlertPresenter, show func(Table)) *SearchController {
	return &SearchController{searcher: searcher, alerts: alerts, show: show}
}

// Search is Begin followed by Run.
func (c *SearchController) Search(ctx context.Context, input string) error {
	query, err := c.Begin(input)
	if err != nil {
		return err
	}
	return c.Run(ctx, query)
}

// Begin validates the input and announces the search. It returns the
// trimmed query.
func (c *SearchController) Begin(input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		c.alerts.Show(MsgEmptyQuery, AlertError)
		return "", ErrEmptyQuery
	}
	c.alerts.Show(MsgSearching, AlertSuccess)
	return query, nil
}

// Run fetches query and renders the outcome. A server-reported failure
// leaves the table as it was.
func (c *SearchController) Run(ctx context.Context, query string) error {
	records, err := c.searcher.Search(ctx, query)
	if err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) {
			c.alerts.Show(apiErr.Message, AlertError)
			return err
		}
		slog.Error("search failed", slog.String("op", query), slog.Any("error", err))
		c.alerts.Show(MsgConnection, AlertError)
		return err
	}

	if c.show != nil {
		c.show(RenderRecords(records))
	}
	if len(records) == 0 {
		c.alerts.Show(fmt.Sprintf(MsgNoResultsFor, query), AlertError)
		return nil
	}
	c.alerts.Show(fmt.Sprintf(MsgFound, len(records)), AlertSuccess)
	return nil
}
