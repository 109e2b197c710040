package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-promotores/client"
	"github.com/aluiziolira/go-promotores/models"
	"golang.org/x/sync/errgroup"
)

// Searcher fetches the records for one OP query.
type Searcher interface {
	Search(ctx context.Context, op string) ([]models.Record, error)
}

// SearchAll runs one search per op, at most parallelism at a time, and
// feeds every result into p. A failed search is logged and counted under
// search_errors; it does not stop the others. Blank ops are skipped.
func SearchAll(ctx context.Context, p *Pipeline, searcher Searcher, ops []string, parallelism int) error {
	if parallelism <= 0 {
		parallelism = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, op := range ops {
		op = strings.TrimSpace(op)
		if op == "" {
			continue
		}
		op := op
		g.Go(func() error {
			records, err := searcher.Search(gctx, op)
			if err != nil {
				label := client.ErrorLabel(err)
				p.metrics.addSearchError(label)
				slog.Warn("search failed",
					slog.String("op", op),
					slog.String("category", label),
					slog.Any("error", err),
				)
				return nil
			}
			slog.Debug("search done", slog.String("op", op), slog.Int("records", len(records)))
			if err := p.Process(records...); err != nil {
				return fmt.Errorf("process %s: %w", op, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ReadOPs reads one OP per line. Blank lines and lines starting with #
// are ignored.
func ReadOPs(r io.Reader) ([]string, error) {
	var ops []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ops = append(ops, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ops: %w", err)
	}
	return ops, nil
}
