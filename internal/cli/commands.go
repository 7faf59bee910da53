package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

func newProfileCmd() *cobra.Command {
	var (
		output  string
		preview int
	)

	cmd := &cobra.Command{
		Use:   "profile FILE",
		Short: "Show per-column statistics and defect flags",
		Long: `Profile a CSV file: row and column counts, memory estimate, and per
column type, missing count, unique count, numeric statistics, mode and flags.

Use "-" as FILE to read from stdin.`,
		Example: `  dataprep profile sales.csv
  dataprep profile sales.csv -o json
  dataprep profile data.tsv --delimiter tab --preview 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadFile(cmd, args[0])
			if err != nil {
				return err
			}
			cfg := configFrom(cmd.Context())
			p := engine.Profile(h)
			flags := engine.Classify(p, cfg.ClassifyOptions())

			out := cmd.OutOrStdout()
			switch output {
			case OutputJSON:
				return renderJSON(out, profileReport{File: args[0], MemoryMB: p.MemoryMB(), Profile: p, Flags: flags})
			case OutputTable:
				renderProfile(out, args[0], p, flags)
				if preview > 0 {
					renderPreview(out, h, preview)
				}
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want table or json)", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", OutputTable, "output format (table|json)")
	cmd.Flags().IntVar(&preview, "preview", 0, "also print the first N rows")
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputTable, OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// parseOp reads one --op value:
//
//	drop_rows | drop_cols
//	drop_column:COL
//	fill_mean[:COL] | fill_zero[:COL] | fill_mode[:COL]
//	rename:OLD=NEW
//	map_values:COL:FROM=TO,FROM=TO
//	encode:COL:label|ordinal|onehot
func parseOp(s string) (engine.Operation, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	op := engine.Operation{Kind: engine.OpKind(kind)}

	switch op.Kind {
	case engine.OpDropRows, engine.OpDropCols:
		if arg != "" {
			return op, fmt.Errorf("--op %s takes no argument", kind)
		}
	case engine.OpFillMean, engine.OpFillZero, engine.OpFillMode:
		op.Column = arg
	case engine.OpDropColumn:
		op.Column = arg
	case engine.OpRename:
		from, to, ok := strings.Cut(arg, "=")
		if !ok {
			return op, fmt.Errorf("--op rename wants OLD=NEW, got %q", arg)
		}
		op.Column, op.NewName = from, to
	case engine.OpMapValues:
		col, pairs, ok := strings.Cut(arg, ":")
		if !ok {
			return op, fmt.Errorf("--op map_values wants COL:FROM=TO[,FROM=TO], got %q", arg)
		}
		op.Column = col
		op.Mapping = map[string]string{}
		for _, pair := range strings.Split(pairs, ",") {
			from, to, ok := strings.Cut(pair, "=")
			if !ok {
				return op, fmt.Errorf("--op map_values: bad pair %q", pair)
			}
			op.Mapping[from] = to
		}
	case engine.OpEncode:
		i := strings.LastIndex(arg, ":")
		if i < 0 {
			return op, fmt.Errorf("--op encode wants COL:METHOD, got %q", arg)
		}
		op.Column, op.Method = arg[:i], engine.EncodingMethod(arg[i+1:])
	default:
		return op, fmt.Errorf("unknown operation %q", kind)
	}

	// Argument-level checks (empty columns, unknown methods) are left to
	// engine.Apply so the CLI and the service report them identically.
	return op, nil
}

func newCleanCmd() *cobra.Command {
	var (
		ops []string
		out string
	)

	cmd := &cobra.Command{
		Use:   "clean FILE",
		Short: "Apply cleaning and transform operations and write the result",
		Long: `Apply operations to a CSV file in the order given and write the
resulting CSV to --out, or stdout when --out is omitted. A failing
operation aborts the run and nothing is written.

Operations:
  drop_rows                       drop rows with any missing value
  drop_cols                       drop columns with any missing value
  drop_column:COL                 drop one column
  fill_mean[:COL]                 impute numeric columns with the mean
  fill_zero[:COL]                 impute numeric columns with 0
  fill_mode[:COL]                 impute categorical columns with the mode
  rename:OLD=NEW                  rename a column
  map_values:COL:FROM=TO,...      replace exact cell values
  encode:COL:label|ordinal|onehot encode a categorical column`,
		Example: `  dataprep clean people.csv --op fill_mean --op fill_mode --out people_clean.csv
  dataprep clean people.csv --op rename:city=town --op encode:town:onehot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ops) == 0 {
				return fmt.Errorf("at least one --op is required")
			}
			parsed := make([]engine.Operation, 0, len(ops))
			for _, s := range ops {
				op, err := parseOp(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, op)
			}

			h, err := loadFile(cmd, args[0])
			if err != nil {
				return err
			}

			logger := loggerFrom(cmd.Context())
			for _, op := range parsed {
				next, err := engine.Apply(h, op, nil)
				if err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				msg := engine.Summarize(op, h, next)
				logger.Info("operation applied", "op", op.String(), "rows", next.RowCount(), "cols", next.ColumnCount())
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), msg)
				h = next
			}

			data, err := h.Bytes()
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows, %d columns to %s\n", h.RowCount(), h.ColumnCount(), out)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ops, "op", nil, "operation KIND[:ARG] (repeatable)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: stdout)")
	return cmd
}

func newChartCmd() *cobra.Command {
	var (
		kind    string
		columns []string
		color   string
		theme   string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "chart FILE",
		Short: "Plan a chart and print its specification",
		Long: `Plan a chart over a CSV file. The chart spec (encoding, materialized
series, statistics) is printed as JSON, or summarized as a table with -o table.

Kinds: ` + chartKindList(),
		Example: `  dataprep chart people.csv --kind histogram --columns age
  dataprep chart people.csv --kind scatter --columns age,score --color city
  dataprep chart people.csv --kind heatmap -o table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadFile(cmd, args[0])
			if err != nil {
				return err
			}
			if theme == "" {
				theme = configFrom(cmd.Context()).Theme
			}

			spec, err := engine.Plan(h, engine.ChartRequest{
				Kind:    engine.ChartKind(kind),
				Columns: columns,
				Color:   color,
				Theme:   theme,
			})
			if err != nil {
				return err
			}

			switch output {
			case OutputJSON:
				return renderJSON(cmd.OutOrStdout(), spec)
			case OutputTable:
				renderChartSummary(cmd.OutOrStdout(), spec)
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want table or json)", output)
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "chart kind")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot, comma separated")
	cmd.Flags().StringVar(&color, "color", "", "column to color by")
	cmd.Flags().StringVar(&theme, "theme", "", "color scale (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", OutputJSON, "output format (json|table)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		kinds := engine.ChartKinds()
		out := make([]string, len(kinds))
		for i, k := range kinds {
			out[i] = string(k)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func chartKindList() string {
	kinds := engine.ChartKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display dataprep version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dataprep v%s (%s)\n", Version, GitCommit)
		},
	}
}
