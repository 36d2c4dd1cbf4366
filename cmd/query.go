package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/csvsource/internal/config"
	"github.com/zjrosen/csvsource/internal/datasource"
	"github.com/zjrosen/csvsource/internal/flags"
	"github.com/zjrosen/csvsource/internal/log"
	"github.com/zjrosen/csvsource/internal/presentation"
)

// queryOptions holds the flags shared by query and watch.
type queryOptions struct {
	attributes  []string
	filters     []string
	page        int
	limit       int
	order       []string
	delimiter   string
	quote       string
	escape      string
	comment     string
	requestFile string
	output      string
	columns     bool
}

var queryOpts queryOptions

var queryCmd = &cobra.Command{
	Use:   "query [file|-]",
	Short: "Run one query against a CSV file or stdin",
	Long: `Register CSV text from a file (or stdin when the argument is "-" or
missing) and print the query result as JSON or YAML.

Each --filter is one group of comma-separated clauses that must all match;
a row is returned when any group matches. A clause is attr=value or
attr[operator]=value. Only the "equal" operator is supported. Use \, for a
literal comma inside a value.

Examples:
  # All rows, selected columns
  csvsource query people.csv --attributes id,name

  # Semicolon separated input, Bob or anyone named Alice
  csvsource query people.csv -D ';' -a id,name -f id=2 -f name=Alice

  # Second page of two rows, as YAML
  csvsource query people.csv -a id --limit 2 --page 2 -o yaml

  # Full request descriptor from a file
  csvsource query people.csv --request request.yaml

  # Header columns only
  cat people.csv | csvsource query --columns`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		req, err := buildRequest(cmd.Flags(), queryOpts)
		if err != nil {
			return err
		}
		reg, err := registerOptions(payload, queryOpts)
		if err != nil {
			return err
		}

		ds, err := newDataSource()
		if err != nil {
			return err
		}
		defer func() { _ = ds.Close(cmd.Context()) }()

		out, err := newFormatter(cmd.OutOrStdout(), queryOpts.output)
		if err != nil {
			return err
		}
		return runQuery(cmd.Context(), ds, out, reg, req, queryOpts.columns)
	},
}

func init() {
	addQueryFlags(queryCmd.Flags(), &queryOpts)
	queryCmd.Flags().BoolVar(&queryOpts.columns, "columns", false, "print the header columns instead of running a query")
	rootCmd.AddCommand(queryCmd)
}

func addQueryFlags(fs *pflag.FlagSet, o *queryOptions) {
	fs.StringSliceVarP(&o.attributes, "attributes", "a", nil, "attributes to return (default: every header column)")
	fs.StringArrayVarP(&o.filters, "filter", "f", nil, "filter group attr=value[,attr=value...] (repeatable, groups are OR'ed)")
	fs.IntVar(&o.page, "page", 0, "1-based page number (needs --limit)")
	fs.IntVar(&o.limit, "limit", 0, "rows per page")
	fs.StringSliceVar(&o.order, "order", nil, "attr[:asc|desc] (not supported, the request is rejected)")
	fs.StringVarP(&o.delimiter, "delimiter", "D", "", "field delimiter (default from config)")
	fs.StringVar(&o.quote, "quote", "", "quote character (default from config)")
	fs.StringVar(&o.escape, "escape", "", "escape character inside quotes (default: quote)")
	fs.StringVar(&o.comment, "comment", "", "comment character (default: none)")
	fs.StringVarP(&o.requestFile, "request", "r", "", "YAML or JSON request descriptor; flags override its fields")
	fs.StringVarP(&o.output, "output", "o", "", "output format: json or yaml (default from config)")
}

// readPayload reads the file named by args[0], or stdin for "-" or no argument.
func readPayload(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

// buildRequest loads the request descriptor, if any, then applies the flags
// that were set explicitly.
func buildRequest(fs *pflag.FlagSet, o queryOptions) (datasource.Request, error) {
	var req datasource.Request
	if o.requestFile != "" {
		loaded, err := loadRequestFile(o.requestFile)
		if err != nil {
			return req, err
		}
		req = loaded
	}

	if fs.Changed("attributes") {
		req.Attributes = o.attributes
	}
	if fs.Changed("filter") {
		filter, err := parseFilterFlags(o.filters)
		if err != nil {
			return req, err
		}
		req.Filter = filter
	}
	if fs.Changed("page") {
		page := o.page
		req.Page = &page
	}
	if fs.Changed("limit") {
		limit := o.limit
		req.Limit = &limit
	}
	if fs.Changed("order") {
		req.Order = parseOrderFlags(o.order)
	}
	return req, nil
}

// loadRequestFile reads a request descriptor. YAML is a superset of JSON, so
// both are accepted.
func loadRequestFile(path string) (datasource.Request, error) {
	var req datasource.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("reading request file: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	return req, nil
}

// parseFilterFlags turns each --filter value into one AND group.
func parseFilterFlags(values []string) (datasource.Filter, error) {
	filter := make(datasource.Filter, 0, len(values))
	for _, value := range values {
		var group []datasource.Clause
		for _, raw := range splitUnescaped(value, ',') {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			clause, err := parseClause(raw)
			if err != nil {
				return nil, err
			}
			group = append(group, clause)
		}
		if len(group) == 0 {
			return nil, fmt.Errorf("empty --filter %q", value)
		}
		filter = append(filter, group)
	}
	return filter, nil
}

// parseClause reads attr=value or attr[operator]=value.
func parseClause(raw string) (datasource.Clause, error) {
	lhs, value, ok := strings.Cut(raw, "=")
	if !ok {
		return datasource.Clause{}, fmt.Errorf("invalid filter clause %q: expected attr=value", raw)
	}

	attr := strings.TrimSpace(lhs)
	op := datasource.OperatorEqual
	if open := strings.IndexByte(attr, '['); open >= 0 && strings.HasSuffix(attr, "]") {
		op = datasource.Operator(strings.TrimSpace(attr[open+1 : len(attr)-1]))
		attr = strings.TrimSpace(attr[:open])
	}
	if attr == "" {
		return datasource.Clause{}, fmt.Errorf("invalid filter clause %q: missing attribute", raw)
	}

	return datasource.Clause{Attribute: attr, Operator: op, Value: value}, nil
}

// splitUnescaped splits s on sep, treating a backslash-escaped sep as text.
func splitUnescaped(s string, sep rune) []string {
	var (
		parts []string
		b     strings.Builder
		esc   bool
	)
	for _, c := range s {
		switch {
		case esc:
			if c != sep {
				b.WriteRune('\\')
			}
			b.WriteRune(c)
			esc = false
		case c == '\\':
			esc = true
		case c == sep:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(c)
		}
	}
	if esc {
		b.WriteRune('\\')
	}
	return append(parts, b.String())
}

func parseOrderFlags(values []string) []datasource.OrderTerm {
	terms := make([]datasource.OrderTerm, 0, len(values))
	for _, v := range values {
		attr, dir, _ := strings.Cut(v, ":")
		terms = append(terms, datasource.OrderTerm{Attribute: attr, Direction: dir})
	}
	return terms
}

func registerOptions(payload string, o queryOptions) (datasource.RegisterOptions, error) {
	reg := datasource.RegisterOptions{Data: payload}
	chars := []struct {
		flag  string
		value string
		dst   *rune
	}{
		{"delimiter", o.delimiter, &reg.Delimiter},
		{"quote", o.quote, &reg.Quote},
		{"escape", o.escape, &reg.Escape},
		{"comment", o.comment, &reg.Comment},
	}
	for _, c := range chars {
		r, err := config.ParseChar(c.value)
		if err != nil {
			return reg, fmt.Errorf("--%s: %w", c.flag, err)
		}
		*c.dst = r
	}
	return reg, nil
}

// newDataSource builds a data source from the loaded configuration.
func newDataSource() (*datasource.DataSource, error) {
	defaults, err := cfg.Parser.Options()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	executorOpts := []datasource.ExecutorOption{
		datasource.WithParseFailureCaching(flags.New(cfg.Flags).Enabled(flags.FlagCacheParseFailures)),
	}
	if traceProvider != nil {
		executorOpts = append(executorOpts, datasource.WithTracer(traceProvider.Tracer()))
	}

	return datasource.New(
		datasource.WithParserDefaults(defaults),
		datasource.WithExecutorOptions(executorOpts...),
	), nil
}

func newFormatter(w io.Writer, format string) (*presentation.Formatter, error) {
	if format == "" {
		format = cfg.Output.Format
	}
	return presentation.NewFormatter(w, format, cfg.Output.Indent)
}

// runQuery registers reg and prints either its columns or the result of req.
// Without attributes the header columns are selected.
func runQuery(ctx context.Context, ds *datasource.DataSource, out *presentation.Formatter,
	reg datasource.RegisterOptions, req datasource.Request, columnsOnly bool) error {
	req.Handle = ds.Register(reg)
	// Each run owns its handle; watch would otherwise keep every old payload.
	defer ds.Release(context.WithoutCancel(ctx), req.Handle)

	if columnsOnly || len(req.Attributes) == 0 {
		columns, err := ds.Columns(ctx, req.Handle)
		if err != nil {
			return err
		}
		if columnsOnly {
			return out.FormatColumns(columns)
		}
		if len(columns) == 0 {
			// Nothing to select from an empty payload.
			return out.FormatResult(&datasource.ResultSet{Data: []datasource.Row{}}, nil)
		}
		req.Attributes = columns
	}

	rs, err := ds.Execute(ctx, req)
	if err != nil {
		return err
	}

	log.Debug(log.CatCLI, "Printing result", "handle", req.Handle, "rows", len(rs.Data))
	return out.FormatResult(rs, req.Attributes)
}
