package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-scout/internal/checkpoint"
	"github.com/sells-group/price-scout/internal/config"
	"github.com/sells-group/price-scout/internal/engine"
	"github.com/sells-group/price-scout/internal/fetcher"
	"github.com/sells-group/price-scout/internal/model"
	"github.com/sells-group/price-scout/internal/sheet"
	"github.com/sells-group/price-scout/internal/source"
	"github.com/sells-group/price-scout/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func checkpointDir() string {
	if cfg.Output.CheckpointDir != "" {
		return cfg.Output.CheckpointDir
	}
	return filepath.Join(cfg.Output.Dir, "checkpoints")
}

// buildEngine wires one engine over the named sources: each gets its own
// executor built from its config section, and the run plan is the
// conservative merge of all participating sources.
func buildEngine(names []string) (*engine.Engine, error) {
	reg := source.Builtin()

	var (
		lookups []engine.Lookup
		scs     []config.SourceConfig
	)
	for _, name := range names {
		if !reg.Has(name) {
			return nil, eris.Errorf("unknown source %q (have: %s)", name, strings.Join(reg.Names(), ", "))
		}
		sc, err := cfg.Source(name)
		if err != nil {
			return nil, err
		}
		if sc.BaseURL == "" {
			return nil, eris.Errorf("source %q has no base_url configured", name)
		}

		src, err := reg.New(name, source.Deps{
			Exec:    fetcher.FromSourceConfig(name, sc),
			BaseURL: strings.TrimSuffix(sc.BaseURL, "/"),
			Search:  cfg.Search,
		})
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, src)
		scs = append(scs, sc)
	}

	plan := engine.ConservativePlan(scs)
	label := strings.Join(names, "-")
	ckpt := checkpoint.NewManager(checkpointDir(), label, plan.CheckpointInterval)

	return engine.New(lookups, plan, ckpt), nil
}

// executeRun is the shared body of the run commands: load items, run the
// engine, write the workbook, record the run.
func executeRun(ctx context.Context, names []string, inputFile string, limit int) error {
	if inputFile == "" {
		inputFile = cfg.Input.File
	}
	if inputFile == "" {
		return eris.New("no input file: set input.file or pass --input")
	}

	items, err := sheet.ReadItems(inputFile, cfg.Input.Sheet, cfg.Input.NameColumn)
	if err != nil {
		return err
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	eng, err := buildEngine(names)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	started := time.Now().UTC()
	outcome, err := eng.Run(ctx, items)
	if err != nil {
		return eris.Wrap(err, "engine run")
	}

	label := strings.Join(names, "-")
	outPath, err := sheet.WriteResults(cfg.Output.Dir, label, items, outcome.Record, names)
	if err != nil {
		return err
	}

	run := store.Run{
		Sources:    names,
		Status:     outcome.Status,
		Processed:  outcome.Processed,
		Summary:    model.Summarize(outcome.Record, names),
		OutputFile: outPath,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	// Recording is bookkeeping; a failed insert must not hide the output.
	if _, err := st.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Warn("record run", zap.Error(err))
	}

	zap.L().Info("run complete",
		zap.String("status", string(outcome.Status)),
		zap.Int("processed", outcome.Processed),
		zap.String("output", outPath),
	)
	for src, s := range run.Summary {
		zap.L().Info("source summary",
			zap.String("source", src),
			zap.Int("total", s.Total),
			zap.Int("found", s.Found),
			zap.Int("on_request", s.OnRequest),
			zap.Int("discontinued", s.Discontinued),
			zap.Int("not_found", s.NotFound),
			zap.Int("errors", s.Errors),
		)
	}
	return nil
}
