package aggregate

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Skufu/onehealth/internal/metrics"
	"github.com/Skufu/onehealth/internal/numeric"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/store"
)

// Engine recomputes aggregations from the store on every call. When the
// store fails it returns the empty value together with an error wrapping
// store.ErrUnavailable, so callers can serve an empty dashboard and still
// tell it apart from a real zero.
type Engine struct {
	reader  store.Reader
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEngine(reader store.Reader, opts Options, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reader: reader, opts: opts, metrics: m, logger: logger}
}

func (e *Engine) Options() Options {
	return e.opts
}

// Load fetches the requested domains concurrently. An empty domain list
// loads everything.
func (e *Engine) Load(ctx context.Context, years records.YearRange, domains ...records.Domain) (records.Dataset, error) {
	if len(domains) == 0 {
		domains = records.Domains
	}
	var data records.Dataset
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range domains {
		d := d
		g.Go(func() error {
			var err error
			switch d {
			case records.Malaria:
				data.Malaria, err = e.reader.Indicators(gctx, records.Malaria, years)
			case records.Tuberculosis:
				data.Tuberculosis, err = e.reader.Indicators(gctx, records.Tuberculosis, years)
			case records.FvrHumain:
				data.FvrHumain, err = e.reader.FvrHumain(gctx, years)
			case records.FvrAnimal:
				data.FvrAnimal, err = e.reader.FvrAnimal(gctx, years)
			case records.AvianFlu:
				data.AvianFlu, err = e.reader.AvianFlu(gctx, years)
			case records.Pollution:
				data.Pollution, err = e.reader.Pollution(gctx, years)
			}
			// Once the group is canceled, sibling reads fail on the canceled
			// context; only the read that failed first is a store outage.
			if err != nil && gctx.Err() == nil {
				e.degraded(string(d), err)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return records.Dataset{}, err
	}
	return data, nil
}

func (e *Engine) degraded(domain string, err error) {
	if !errors.Is(err, store.ErrUnavailable) {
		e.logger.Error("record read failed", "domain", domain, "error", err)
		return
	}
	e.metrics.StoreFailed(domain)
	e.logger.Warn("record store unavailable, serving empty result",
		"domain", domain, "degraded", true, "error", err)
}

func (e *Engine) report(domain records.Domain, tally *numeric.Tally) {
	if n := tally.Skipped(); n > 0 {
		e.metrics.Skipped(string(domain), n)
		e.logger.Debug("skipped malformed numeric values", "domain", domain, "skipped", n)
	}
}

func (e *Engine) TotalByDomain(ctx context.Context, domain records.Domain, years records.YearRange) (int64, error) {
	data, err := e.Load(ctx, years, domain)
	if err != nil {
		return 0, err
	}
	var tally numeric.Tally
	defer e.report(domain, &tally)
	return TotalByDomain(e.headline(data), domain, years, &tally), nil
}

func (e *Engine) TotalsByRegion(ctx context.Context, domain records.Domain, years records.YearRange) ([]RegionTotal, error) {
	data, err := e.Load(ctx, years, domain)
	if err != nil {
		return []RegionTotal{}, err
	}
	var tally numeric.Tally
	defer e.report(domain, &tally)
	return SortTotals(TotalsByRegion(e.headline(data), domain, years, &tally)), nil
}

// headline narrows malaria to the case-count indicator so totals never add
// deaths or incidence rates to confirmed cases.
func (e *Engine) headline(data records.Dataset) records.Dataset {
	data.Malaria = filterIndicator(data.Malaria, e.opts.MalariaIndicator)
	return data
}

// LatestByIndicatorCode returns ok=false when no record carries code.
func (e *Engine) LatestByIndicatorCode(ctx context.Context, domain records.Domain, code string) (records.IndicatorRecord, bool, error) {
	data, err := e.Load(ctx, records.YearRange{}, domain)
	if err != nil {
		return records.IndicatorRecord{}, false, err
	}
	rows := data.Malaria
	if domain == records.Tuberculosis {
		rows = data.Tuberculosis
	}
	r, ok := LatestByIndicatorCode(rows, code)
	return r, ok, nil
}

func (e *Engine) ByIndicatorBucket(ctx context.Context, domain records.Domain, years records.YearRange) ([]IndicatorBucket, error) {
	data, err := e.Load(ctx, years, domain)
	if err != nil {
		return []IndicatorBucket{}, err
	}
	rows := data.Malaria
	if domain == records.Tuberculosis {
		rows = data.Tuberculosis
	}
	var tally numeric.Tally
	defer e.report(domain, &tally)
	return ByIndicatorBucket(rows, e.opts.BucketLimit, e.opts.NameDisplayCap, &tally), nil
}

func (e *Engine) RegionMapSnapshot(ctx context.Context, years records.YearRange) ([]RegionAggregate, error) {
	data, err := e.Load(ctx, years, records.FvrHumain, records.FvrAnimal, records.AvianFlu, records.Malaria)
	if err != nil {
		return []RegionAggregate{}, err
	}
	var tally numeric.Tally
	defer e.report(records.Malaria, &tally)
	return RegionMapSnapshot(data, e.opts, &tally), nil
}

// PollutionByZone returns the latest PM2.5 value per zone.
func (e *Engine) PollutionByZone(ctx context.Context, years records.YearRange) (map[string]float64, error) {
	data, err := e.Load(ctx, years, records.Pollution)
	if err != nil {
		return map[string]float64{}, err
	}
	var tally numeric.Tally
	defer e.report(records.Pollution, &tally)
	return PollutionByZone(data.Pollution, &tally), nil
}

func (e *Engine) KPIs(ctx context.Context) (KPIs, error) {
	data, err := e.Load(ctx, records.YearRange{})
	if err != nil {
		return KPIs{MalariaCases: "0", TuberculosisCases: "0", PM25Recent: "0"}, err
	}
	var tally numeric.Tally
	defer e.report(records.Malaria, &tally)
	return ComputeKPIs(data, e.opts, &tally), nil
}
