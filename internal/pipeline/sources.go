package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/qwyt/wp-police-shooting/internal/adapter/csvsource"
	"github.com/qwyt/wp-police-shooting/internal/adapter/excel"
	"github.com/qwyt/wp-police-shooting/internal/adapter/geo"
	"github.com/qwyt/wp-police-shooting/internal/config"
	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

// Inputs is everything a run reads before reconciling.
type Inputs struct {
	Events     []domain.Event
	Facts      []domain.CountyFacts
	Dictionary csvsource.Dictionary
	Homicides  []domain.HomicideRecord
	Spending   []domain.StateSpending
	// Locator is nil when no county boundary file could be found; events are
	// then placed by join key only.
	Locator domain.CountyLocator
}

// Sources loads the inputs of a run.
type Sources interface {
	Load(ctx context.Context) (*Inputs, error)
}

// FileSources reads every input from the local filesystem.
type FileSources struct {
	cfg     *config.Config
	ref     *reference.Data
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFileSources returns sources for the paths in cfg.
func NewFileSources(cfg *config.Config, ref *reference.Data, logger *slog.Logger, metrics *observability.Metrics) *FileSources {
	return &FileSources{cfg: cfg, ref: ref, logger: logger, metrics: metrics}
}

// Load reads all datasets concurrently. Any unreadable table fails the load;
// missing boundary files only disable the spatial pass.
func (s *FileSources) Load(ctx context.Context) (*Inputs, error) {
	in := &Inputs{}
	boundaries := make([]*geo.PolygonLocator, len(s.cfg.CountyBoundaryPaths))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		events, err := csvsource.LoadEvents(s.cfg.EventsPath)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		in.Events = events
		s.loaded("events", len(events))
		return nil
	})
	g.Go(func() error {
		facts, err := csvsource.LoadFacts(s.cfg.FactsPath)
		if err != nil {
			return fmt.Errorf("load county facts: %w", err)
		}
		in.Facts = facts
		s.loaded("facts", len(facts))
		return nil
	})
	g.Go(func() error {
		dict, err := csvsource.LoadDictionary(s.cfg.FactsDictionaryPath)
		if err != nil {
			return fmt.Errorf("load facts dictionary: %w", err)
		}
		in.Dictionary = dict
		s.loaded("dictionary", len(dict))
		return nil
	})
	g.Go(func() error {
		records, err := csvsource.LoadHomicides(s.cfg.HomicidePath)
		if err != nil {
			return fmt.Errorf("load homicides: %w", err)
		}
		in.Homicides = records
		s.loaded("homicides", len(records))
		return nil
	})
	g.Go(func() error {
		spending, err := excel.LoadSpending(s.cfg.SpendingPath, s.ref.StateNames)
		if err != nil {
			return fmt.Errorf("load police spending: %w", err)
		}
		in.Spending = spending
		s.loaded("spending", len(spending))
		return nil
	})
	for i, path := range s.cfg.CountyBoundaryPaths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			loc, err := geo.LoadBoundaries(path, s.cfg.CountyIDProperty)
			if errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("county boundaries not found, skipping vintage", "path", path)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load county boundaries: %w", err)
			}
			boundaries[i] = loc
			s.loaded("boundaries", loc.Len())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	loc, err := s.locator(boundaries)
	if err != nil {
		return nil, err
	}
	in.Locator = loc
	return in, nil
}

// locator chains the loaded vintages in configured order and puts the cache
// in front. It returns nil when no vintage loaded.
func (s *FileSources) locator(boundaries []*geo.PolygonLocator) (domain.CountyLocator, error) {
	var chain geo.Chain
	for _, b := range boundaries {
		if b != nil {
			chain = append(chain, b)
		}
	}
	if len(chain) == 0 {
		s.logger.Warn("no county boundaries loaded, spatial matching disabled")
		return nil, nil
	}
	if s.cfg.LocatorCacheSize == 0 {
		return chain, nil
	}
	cached, err := geo.NewCachedLocator(chain, s.cfg.LocatorCacheSize, s.metrics)
	if err != nil {
		return nil, fmt.Errorf("create locator cache: %w", err)
	}
	return cached, nil
}

func (s *FileSources) loaded(source string, rows int) {
	s.metrics.RowsLoaded.WithLabelValues(source).Add(float64(rows))
	s.logger.Info("source loaded", "source", source, "rows", rows)
}
