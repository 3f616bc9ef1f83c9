package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/archive"
	"github.com/Skufu/onehealth/internal/config"
	"github.com/Skufu/onehealth/internal/importer"
	"github.com/Skufu/onehealth/internal/metrics"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
	"github.com/Skufu/onehealth/internal/risk"
	"github.com/Skufu/onehealth/internal/store"
)

var errUsage = errors.New("invalid usage")

type app struct {
	store    store.Store
	cfg      *config.Config
	engine   *aggregate.Engine
	importer *importer.Importer
	logger   *slog.Logger
	progress bool
	now      func() time.Time
}

func newApp(st store.Store, cfg *config.Config, logger *slog.Logger) *app {
	return &app{
		store:    st,
		cfg:      cfg,
		engine:   aggregate.NewEngine(st, cfg.Aggregate, metrics.New(), logger),
		importer: importer.New(st, logger),
		logger:   logger,
		now:      time.Now,
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "report":
		return a.report(ctx, args, out)
	case "alerts":
		return a.alerts(ctx, args, out)
	case "export":
		return a.export(ctx, args, out)
	case "import":
		return a.importFile(ctx, args, out)
	case "snapshot":
		return a.snapshot(ctx, args, out)
	case "history":
		return a.history(ctx, args, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func checkFormat(format string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("%w: output must be table or json, got %q", errUsage, format)
	}
	return nil
}

// assess computes the risk of every region for the current month.
func (a *app) assess(ctx context.Context, all bool) ([]aggregate.RegionAggregate, []risk.Assessment, error) {
	snapshot, err := a.engine.RegionMapSnapshot(ctx, records.YearRange{})
	if err != nil {
		return nil, nil, err
	}
	pm25, err := a.engine.PollutionByZone(ctx, records.YearRange{})
	if err != nil {
		return nil, nil, err
	}
	env := risk.Environment{PM25ByZone: pm25, Season: risk.SeasonFor(int(a.now().Month()))}
	var opts risk.Options
	if all {
		opts.AllKnownRegions = registry.New(registry.Default).Names()
	}
	return snapshot, a.cfg.Policy.Assess(snapshot, env, opts), nil
}

func (a *app) report(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("report")
	all := fs.Bool("all", false, "Include known regions without any record")
	format := fs.StringP("output", "o", "table", "Output format (table or json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	var assessed []risk.Assessment
	err := withSpinner(a.progress, "Computing regional risk...", func() error {
		var err error
		_, assessed, err = a.assess(ctx, *all)
		return err
	})
	if err != nil {
		return err
	}
	if *format == "json" {
		return writeJSON(out, assessed)
	}
	renderRiskTable(out, assessed)
	return nil
}

func (a *app) alerts(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("alerts")
	format := fs.StringP("output", "o", "table", "Output format (table or json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	snapshot, err := a.engine.RegionMapSnapshot(ctx, records.YearRange{})
	if err != nil {
		return err
	}
	pm25, err := a.engine.PollutionByZone(ctx, records.YearRange{})
	if err != nil {
		return err
	}
	list := alerts.NewGenerator(a.cfg.Policy, a.cfg.Alerts).Generate(snapshot, pm25)
	if *format == "json" {
		return writeJSON(out, list)
	}
	renderAlertTable(out, list)
	return nil
}

func (a *app) export(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("export")
	file := fs.StringP("file", "f", "", "Write to this path instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var data records.Dataset
	err := withSpinner(a.progress, "Exporting records...", func() error {
		var err error
		data, err = a.engine.Load(ctx, records.YearRange{})
		return err
	})
	if err != nil {
		return err
	}
	if *file == "" {
		return store.WriteDataset(out, data)
	}
	f, err := os.Create(*file)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := store.WriteDataset(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// importFile loads an HXL CSV for malaria or tuberculose, or a communiqué
// JSON for fvr_humain. A file-backed memory store is written back afterwards.
func (a *app) importFile(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("import")
	domain := fs.StringP("domain", "d", "", "Target domain: malaria, tuberculose or fvr_humain")
	preview := fs.Bool("preview", false, "Validate a communiqué without writing it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: import needs exactly one file", errUsage)
	}
	d := records.Domain(strings.ToLower(*domain))

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer f.Close()

	var res importer.Result
	switch {
	case d.IsIndicator():
		res, err = a.importer.ImportIndicators(ctx, d, f)
	case d == records.FvrHumain:
		var c importer.Communique
		if err := json.NewDecoder(f).Decode(&c); err != nil {
			return fmt.Errorf("import: decode communiqué: %w", err)
		}
		req := importer.ValidateRequest{Data: c, Action: "confirm"}
		if *preview {
			req.Action = "preview"
		}
		res, err = a.importer.ImportCommunique(ctx, req)
	default:
		return fmt.Errorf("%w: unsupported domain %q", errUsage, *domain)
	}
	if err != nil {
		return err
	}

	if mem, ok := a.store.(*store.Memory); ok && a.cfg.DataFile != "" && res.Inserted > 0 {
		if err := mem.SaveFile(a.cfg.DataFile); err != nil {
			return err
		}
	}
	renderImportResult(out, res)
	return nil
}

func (a *app) openArchive() (*archive.Archive, error) {
	if a.cfg.ArchivePath == "" {
		return nil, errors.New("ARCHIVE_PATH is not set")
	}
	return archive.Open(a.cfg.ArchivePath)
}

func (a *app) snapshot(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	arc, err := a.openArchive()
	if err != nil {
		return err
	}
	defer arc.Close()

	source := func(ctx context.Context) ([]aggregate.RegionAggregate, []risk.Assessment, error) {
		return a.assess(ctx, false)
	}
	sched, err := archive.NewScheduler(arc, a.cfg.ArchiveSchedule, a.cfg.ArchiveRetention, source, a.logger)
	if err != nil {
		return err
	}
	if err := sched.RunOnce(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "snapshot archived")
	return nil
}

func (a *app) history(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("history")
	region := fs.StringP("region", "r", "", "Only this region")
	limit := fs.IntP("limit", "n", 50, "Maximum rows")
	format := fs.StringP("output", "o", "table", "Output format (table or json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	arc, err := a.openArchive()
	if err != nil {
		return err
	}
	defer arc.Close()

	entries, err := arc.History(ctx, *region, *limit)
	if err != nil {
		return err
	}
	if *format == "json" {
		return writeJSON(out, entries)
	}
	renderHistoryTable(out, entries)
	return nil
}
