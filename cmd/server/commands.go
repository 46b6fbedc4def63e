package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/logging"
	"github.com/basicrecords/moodjournal/internal/mood"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <score>...",
		Short: "Print the intensity level of each score",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				score, err := strconv.ParseFloat(arg, 64)
				if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
					return fmt.Errorf("score %q is not a finite number", arg)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, mood.Classify(score))
			}
			return nil
		},
	}
}

type aggregateOptions struct {
	file      string
	moods     []string
	timezone  string
	precision int
}

func newAggregateCmd(root *rootOptions) *cobra.Command {
	opts := &aggregateOptions{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Compute weekday mood averages from a JSON entry export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if root.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runAggregate(cmd, opts, logger)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "entries JSON file, - for stdin")
	cmd.Flags().StringSliceVarP(&opts.moods, "mood", "m", nil, "only include entries matching type:Level (repeatable)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "IANA zone used to pick weekdays")
	cmd.Flags().IntVarP(&opts.precision, "precision", "p", 1, "decimals in printed averages")
	return cmd
}

func runAggregate(cmd *cobra.Command, opts *aggregateOptions, logger *zap.Logger) error {
	entries, err := readEntries(cmd, opts.file)
	if err != nil {
		return err
	}
	criteria, err := parseCriteria(opts.moods)
	if err != nil {
		return err
	}

	aggOpts := []mood.Option{mood.WithLogger(logger)}
	if opts.timezone != "" {
		loc, err := time.LoadLocation(opts.timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		aggOpts = append(aggOpts, mood.WithLocation(loc))
	}

	agg, stats := mood.NewAggregator(aggOpts...).AggregateWithStats(mood.Filter(entries, criteria))
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"days":  mood.Summarize(agg, opts.precision),
		"stats": stats,
	})
}

func newFilterCmd() *cobra.Command {
	var (
		file  string
		moods []string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the entries of a JSON export that match the mood criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := readEntries(cmd, file)
			if err != nil {
				return err
			}
			criteria, err := parseCriteria(moods)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), mood.Filter(entries, criteria))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "entries JSON file, - for stdin")
	cmd.Flags().StringSliceVarP(&moods, "mood", "m", nil, "type:Level criterion (repeatable)")
	return cmd
}

func readEntries(cmd *cobra.Command, path string) ([]domain.Entry, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open entries: %w", err)
		}
		defer f.Close()
		r = f
	}

	var entries []domain.Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

func parseCriteria(raw []string) (*domain.CriteriaSet, error) {
	set := domain.NewCriteriaSet()
	for _, s := range raw {
		c, err := domain.ParseCriterion(s)
		if err != nil {
			return nil, err
		}
		set.Add(c)
	}
	return set, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
