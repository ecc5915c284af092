// Package ingest pulls feeds through the converter, normalizes items and stores the new ones.
package ingest

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/lawscope/pkg/domain"
	"github.com/umputun/lawscope/pkg/feed"
)

//go:generate moq -out mocks/converter.go -pkg mocks -skip-ensure -fmt goimports . Converter
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/reporter.go -pkg mocks -skip-ensure -fmt goimports . Reporter

// StatusFetching is reported at the start of each run
const StatusFetching = "Fetching latest news feeds..."

// Converter fetches raw items of a feed
type Converter interface {
	Fetch(ctx context.Context, feedURL string) ([]feed.RawItem, error)
}

// Store is the persisted news collection
type Store interface {
	Exists(ctx context.Context, link string) (bool, error)
	Insert(ctx context.Context, item *domain.NewsItem) error
}

// Reporter receives run status and reloads the working set after a run
type Reporter interface {
	SetStatus(msg string)
	SetFailure(err error)
	Reload(ctx context.Context) error
}

// Params for NewIngestor
type Params struct {
	Sources    []domain.FeedSource
	Converter  Converter
	Normalizer *feed.Normalizer
	Store      Store
	Reporter   Reporter
	MaxWorkers int // concurrent feed fetches, 0 fetches all feeds at once
}

// Result summarizes one run
type Result struct {
	Fetched     int // raw items received from all feeds
	Skipped     int // raw items the normalizer rejected
	Inserted    int
	Duplicates  int
	Failed      int // items failed on exists check or insert
	FailedFeeds int
}

// Ingestor runs the fetch-normalize-store pipeline
type Ingestor struct {
	sources    []domain.FeedSource
	converter  Converter
	normalizer *feed.Normalizer
	store      Store
	reporter   Reporter
	maxWorkers int
}

// NewIngestor makes an ingestor
func NewIngestor(p Params) *Ingestor {
	if p.Normalizer == nil {
		p.Normalizer = feed.NewNormalizer(nil)
	}
	if p.MaxWorkers <= 0 {
		p.MaxWorkers = len(p.Sources)
	}
	return &Ingestor{
		sources:    p.Sources,
		converter:  p.Converter,
		normalizer: p.Normalizer,
		store:      p.Store,
		reporter:   p.Reporter,
		maxWorkers: p.MaxWorkers,
	}
}

// Run fetches all sources concurrently, then checks and inserts items one by one in source order,
// then reloads the working set. Feed failures contribute nothing, item failures are reported and skipped.
// A panic fails the run and is reported as a failure.
func (ing *Ingestor) Run(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
			lgr.Printf("[ERROR] ingestion panic: %v", r)
			ing.reporter.SetFailure(err)
		}
	}()

	ing.reporter.SetStatus(StatusFetching)

	batches, failedFeeds := ing.fetchAll(ctx)
	res.FailedFeeds = failedFeeds

	var items []domain.NewsItem
	for _, raws := range batches {
		res.Fetched += len(raws)
		normalized, skipped := ing.normalizer.NormalizeAll(raws)
		res.Skipped += skipped
		items = append(items, normalized...)
	}

	for i := range items {
		item := &items[i]
		exists, err := ing.store.Exists(ctx, item.Link)
		if err != nil {
			lgr.Printf("[WARN] can't check %s: %v", item.Link, err)
			res.Failed++
			continue
		}
		if exists {
			res.Duplicates++
			continue
		}
		if err := ing.store.Insert(ctx, item); err != nil {
			lgr.Printf("[WARN] can't insert %s: %v", item.Link, err)
			ing.reporter.SetStatus("Insert error: " + err.Error())
			res.Failed++
			continue
		}
		res.Inserted++
	}

	lgr.Printf("[INFO] ingestion done, fetched %d, skipped %d, inserted %d, duplicates %d, failed %d, failed feeds %d",
		res.Fetched, res.Skipped, res.Inserted, res.Duplicates, res.Failed, res.FailedFeeds)

	if err := ing.reporter.Reload(ctx); err != nil {
		return res, fmt.Errorf("reload news: %w", err)
	}
	return res, nil
}

// fetchAll returns raw items per source in source order, a failed source yields nil
func (ing *Ingestor) fetchAll(ctx context.Context) (batches [][]feed.RawItem, failed int) {
	batches = make([][]feed.RawItem, len(ing.sources))
	errs := make([]error, len(ing.sources))

	eg := new(errgroup.Group)
	eg.SetLimit(max(ing.maxWorkers, 1))
	for i, src := range ing.sources {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			raws, err := ing.converter.Fetch(ctx, src.URL)
			if err != nil {
				errs[i] = err
				return nil
			}
			batches[i] = raws
			return nil
		})
	}
	_ = eg.Wait()

	for i, err := range errs {
		if err != nil {
			lgr.Printf("[WARN] feed %s failed: %v", ing.sources[i].URL, err)
			failed++
		}
	}
	return batches, failed
}
