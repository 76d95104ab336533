package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/export"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/sources"
)

type resolveOptions struct {
	warningLetters    []string
	complianceReports []string
	jsonLines         []string
	out               string
	linksOut          string
	xlsx              string
	dsn               string
}

func newResolveCommand(envFile *string) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve source record files against the registry and export the result",
		Example: `  fern resolve --warning-letters letters.csv --compliance-reports eu.csv --out registry.csv
  fern resolve --jsonl records.jsonl --dsn :memory: --xlsx registry.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(opts.warningLetters)+len(opts.complianceReports)+len(opts.jsonLines) == 0 {
				return errors.New("at least one of --warning-letters, --compliance-reports or --jsonl is required")
			}
			cfg, logger, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if opts.dsn != "" {
				cfg.DatabaseDSN = opts.dsn
			}
			return runResolve(cmd.Context(), cfg, logger, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.warningLetters, "warning-letters", nil, "FDA warning letter CSV exports")
	flags.StringSliceVar(&opts.complianceReports, "compliance-reports", nil, "EU non-compliance report CSV exports")
	flags.StringSliceVar(&opts.jsonLines, "jsonl", nil, "JSON lines files of incoming records")
	flags.StringVar(&opts.out, "out", "-", "organization registry CSV, - for stdout")
	flags.StringVar(&opts.linksOut, "links-out", "", "linked records CSV")
	flags.StringVar(&opts.xlsx, "xlsx", "", "workbook with registry and linked records sheets")
	flags.StringVar(&opts.dsn, "dsn", "", "override DB_DSN, e.g. :memory: for a throwaway registry")
	return cmd
}

func runResolve(ctx context.Context, cfg *config.Config, logger ectologger.Logger, opts *resolveOptions, stdout io.Writer) error {
	records, err := loadRecords(opts)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := newApp(ctx, cfg, logger, db)
	if err != nil {
		return err
	}

	p := pipeline.New(a.resolver, a.registry, logger, pipeline.LinkStoreSink{Store: a.links})
	links, err := p.Process(ctx, records)
	if err != nil {
		if !pipeline.OnlySinkErrors(err) {
			return err
		}
		logger.WithContext(ctx).WithError(err).Warn("Records resolved but link persistence failed")
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"records":       len(records),
		"linked":        len(links),
		"organizations": a.registry.Len(),
	}).Info("Resolution complete")

	orgs := a.registry.All()
	if err := writeTo(opts.out, stdout, func(w io.Writer) error {
		return export.WriteCSV(w, export.OrganizationTable(orgs))
	}); err != nil {
		return err
	}
	if opts.linksOut != "" {
		if err := writeTo(opts.linksOut, stdout, func(w io.Writer) error {
			return export.WriteCSV(w, export.LinkTable(links))
		}); err != nil {
			return err
		}
	}
	if opts.xlsx != "" {
		return writeTo(opts.xlsx, stdout, func(w io.Writer) error {
			return export.WriteXLSX(w,
				export.Sheet{Name: "Organizations", Table: export.OrganizationTable(orgs)},
				export.Sheet{Name: "Links", Table: export.LinkTable(links)},
			)
		})
	}
	return nil
}

// loadRecords reads warning letters, then compliance reports, then JSON lines,
// preserving file order within each group.
func loadRecords(opts *resolveOptions) ([]models.IncomingRecord, error) {
	records := []models.IncomingRecord{}
	groups := []struct {
		paths []string
		read  func(io.Reader) ([]models.IncomingRecord, error)
	}{
		{opts.warningLetters, sources.ReadWarningLetters},
		{opts.complianceReports, sources.ReadComplianceReports},
		{opts.jsonLines, sources.ReadJSONLines},
	}
	for _, g := range groups {
		for _, path := range g.paths {
			batch, err := readFile(path, g.read)
			if err != nil {
				return nil, err
			}
			records = append(records, batch...)
		}
	}
	return records, nil
}

func readFile(path string, read func(io.Reader) ([]models.IncomingRecord, error)) ([]models.IncomingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	records, err := read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return records, nil
}

func writeTo(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
