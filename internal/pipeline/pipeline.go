// Package pipeline drives one ingest-merge-load run: scan the data
// directory, parse each event document, reconcile duplicate reports per
// order, and full-reload the store with the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jstrand/roload/internal/merge"
	"github.com/jstrand/roload/internal/parser"
	"github.com/jstrand/roload/internal/source"
	"github.com/jstrand/roload/internal/storage"
)

// Stats summarizes one run.
type Stats struct {
	Files   int // documents found in the data directory
	Parsed  int // documents that parsed cleanly
	Skipped int // documents rejected by the parser
	Orders  int // rows loaded into repair_order
	Details int // rows loaded into repair_order_detail
}

// Pipeline wires the run's collaborators together. Construct one per run.
type Pipeline struct {
	store   *storage.Store
	dataDir string
	workers int
	log     zerolog.Logger
}

// New builds a Pipeline. workers controls how many documents are read and
// parsed concurrently; 1 (or less) keeps the run fully sequential. Every
// log line from the run carries a fresh run id.
func New(store *storage.Store, dataDir string, workers int, log zerolog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		store:   store,
		dataDir: dataDir,
		workers: workers,
		log:     log.With().Str("run_id", uuid.NewString()).Logger(),
	}
}

// Run executes the full pipeline once.
//
// Parse failures are not fatal: the offending document is logged at error
// level and skipped, and the run loads whatever survived. Schema and load
// failures are fatal and returned to the caller.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	files, err := source.List(p.dataDir)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Files: len(files)}
	p.log.Info().Str("dir", p.dataDir).Int("files", len(files)).Msg("reading data directory")

	results, err := p.parseAll(ctx, files)
	if err != nil {
		return stats, err
	}

	eng := merge.New(p.log)
	for i, res := range results {
		if res.err != nil {
			var pe *parser.ParseError
			if !errors.As(res.err, &pe) {
				return stats, fmt.Errorf("parsing %s: %w", files[i], res.err)
			}
			stats.Skipped++
			p.log.Error().Str("file", files[i]).Err(res.err).Msg("skipping document")
			continue
		}
		stats.Parsed++
		eng.Apply(res.event)
	}

	orders, details := toRows(eng.Snapshot())
	if err := p.store.Load(ctx, orders, details); err != nil {
		return stats, fmt.Errorf("loading store: %w", err)
	}
	stats.Orders = len(orders)
	stats.Details = len(details)

	p.log.Info().
		Int("files", stats.Files).
		Int("parsed", stats.Parsed).
		Int("skipped", stats.Skipped).
		Int("orders", stats.Orders).
		Int("details", stats.Details).
		Msg("run complete")
	return stats, nil
}

type result struct {
	event parser.Event
	err   error
}

// parseAll reads and parses every file. With workers > 1 documents are
// handled concurrently, but each result keeps its input position, so the
// merge still sees events in filename order and tie-break outcomes are
// identical to a sequential run. A read failure aborts the run; a parse
// failure is recorded in the file's slot for the caller to decide on.
func (p *Pipeline) parseAll(ctx context.Context, files []string) ([]result, error) {
	results := make([]result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.log.Info().Int("n", i+1).Int("of", len(files)).Str("file", path).Msg("reading")
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			ev, err := parser.Parse(raw)
			results[i] = result{event: ev, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func toRows(events []parser.Event) ([]storage.RepairOrder, []storage.RepairOrderDetail) {
	orders := make([]storage.RepairOrder, 0, len(events))
	var details []storage.RepairOrderDetail
	for _, ev := range events {
		orders = append(orders, storage.RepairOrder{
			OrderID:    ev.OrderID,
			Timestamp:  ev.Timestamp,
			Status:     string(ev.Status),
			Cost:       ev.Cost,
			Technician: ev.Technician,
		})
		for _, part := range ev.Parts {
			details = append(details, storage.RepairOrderDetail{
				OrderID:  ev.OrderID,
				PartName: part.Name,
				Quantity: part.Quantity,
			})
		}
	}
	return orders, details
}
