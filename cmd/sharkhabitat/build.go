package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/sharkhabitat/internal/pipeline"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		occurrences    string
		outputDir      string
		report         string
		start          string
		end            string
		ratio          int
		seed           uint64
		keepIncomplete bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Join occurrences and pseudo-absences with the downloaded sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("occurrences") {
				a.cfg.Paths.OccurrenceFile = occurrences
			}
			if flags.Changed("output-dir") {
				a.cfg.Paths.OutputDir = outputDir
			}
			if flags.Changed("report") {
				a.cfg.Paths.Report = report
			}
			if flags.Changed("start") {
				a.cfg.Build.Start = start
			}
			if flags.Changed("end") {
				a.cfg.Build.End = end
			}
			if flags.Changed("ratio") {
				a.cfg.Build.Ratio = ratio
			}
			if flags.Changed("seed") {
				a.cfg.Build.Seed = seed
			}
			if flags.Changed("keep-incomplete") {
				a.cfg.Join.KeepIncomplete = keepIncomplete
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			t0, t1, err := a.cfg.Build.Window()
			if err != nil {
				return err
			}
			sources, err := a.catalog.PipelineSources(a.cfg.Paths.DataDir)
			if err != nil {
				return err
			}

			p := pipeline.New(pipeline.Config{
				OccurrenceFile: a.cfg.Paths.OccurrenceFile,
				Occurrence:     a.cfg.Build.Occurrence(),
				Start:          t0,
				End:            t1,
				Ratio:          a.cfg.Build.Ratio,
				Seed:           a.cfg.Build.Seed,
				Sources:        sources,
				Join:           a.cfg.Join.Options(),
				OutputDir:      a.cfg.Paths.OutputDir,
				ReportPath:     a.cfg.Paths.Report,
			}).WithLogger(a.logger)

			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			if res.OutputPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "final dataset is empty, nothing written")
				return nil
			}
			a.logger.Debug("build result",
				slog.String("run_id", res.RunID),
				slog.Int("presences", res.Presences),
				slog.Int("absences", res.Absences),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(res.Table.Rows), res.OutputPath)
			if res.ReportPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", res.ReportPath)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&occurrences, "occurrences", "", "occurrence export (default PATHS_OCCURRENCE_FILE)")
	f.StringVar(&outputDir, "output-dir", "", "directory of the training set (default PATHS_OUTPUT_DIR)")
	f.StringVar(&report, "report", "", "write a PNG scatter plot of the final rows here")
	f.StringVar(&start, "start", "", "first day of the window (default BUILD_START)")
	f.StringVar(&end, "end", "", "end of the window (default BUILD_END)")
	f.IntVar(&ratio, "ratio", 2, "pseudo-absences per presence")
	f.Uint64Var(&seed, "seed", 42, "pseudo-absence random seed")
	f.BoolVar(&keepIncomplete, "keep-incomplete", false, "keep rows missing a value for some source")
	return cmd
}
