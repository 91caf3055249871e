package transfer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pilgrim-map/internal/catalog"
)

// DefaultConcurrency is the number of features validated at once when none
// is set.
const DefaultConcurrency = 4

// Result summarizes an import run.
type Result struct {
	Created int
	Skipped int
	IDs     []int64
}

// Importer creates features through the catalog service.
type Importer struct {
	svc         *catalog.Service
	concurrency int
	log         *zap.Logger
}

// NewImporter creates an Importer validating up to concurrency features at
// once.
func NewImporter(svc *catalog.Service, concurrency int) *Importer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Importer{
		svc:         svc,
		concurrency: concurrency,
		log:         zap.L().With(zap.String("component", "import")),
	}
}

// Import creates every feature. Features the catalog rejects as malformed are
// logged and skipped; any storage failure stops the run. Features are
// encoded concurrently but inserted one at a time in input order, so stored
// ids follow the file. IDs are returned in input order, zero for skipped
// features.
func (im *Importer) Import(ctx context.Context, features []catalog.Feature) (Result, error) {
	invalid := make([]error, len(features))
	layout := im.svc.Layout()

	g := new(errgroup.Group)
	g.SetLimit(im.concurrency)
	for i, f := range features {
		i, f := i, f
		g.Go(func() error {
			_, invalid[i] = catalog.FeatureToRowFields(f, layout)
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]int64, len(features))
	var skipped int
	for i, f := range features {
		if invalid[i] != nil {
			im.log.Warn("skipping invalid feature", zap.Int("index", i), zap.Error(invalid[i]))
			skipped++
			continue
		}
		id, err := im.svc.Create(ctx, f)
		if catalog.IsInputError(err) {
			im.log.Warn("skipping invalid feature", zap.Int("index", i), zap.Error(err))
			skipped++
			continue
		}
		if err != nil {
			return Result{}, eris.Wrapf(err, "transfer: import feature %d", i)
		}
		ids[i] = id
	}

	im.log.Info("import complete",
		zap.Int("created", len(features)-skipped),
		zap.Int("skipped", skipped),
	)
	return Result{Created: len(features) - skipped, Skipped: skipped, IDs: ids}, nil
}
