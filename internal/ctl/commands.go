// Package ctl implements the gastosctl subcommands over the REST client.
package ctl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gastos/internal/client"
	"gastos/internal/core"
	"gastos/internal/dashboard"

	"github.com/google/subcommands"
)

// Settings are shared by every subcommand.
type Settings struct {
	APIURL string
	Out    io.Writer
	Err    io.Writer
}

func (s *Settings) client() *client.Client {
	return client.New(s.APIURL)
}

func (s *Settings) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(s.Err, err)
	return subcommands.ExitFailure
}

// Commands returns the subcommands bound to s.
func Commands(s *Settings) []subcommands.Command {
	return []subcommands.Command{
		&importCmd{s: s},
		&listCmd{s: s},
		&kpisCmd{s: s},
		&categorizeCmd{s: s},
		&deleteCmd{s: s},
	}
}

type importCmd struct {
	s *Settings
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a CSV or Excel bank export" }
func (*importCmd) Usage() string {
	return `gastosctl import <file>

  Uploads the file, which the server parses, classifies and stores.
`
}
func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)
	file, err := os.Open(path)
	if err != nil {
		return c.s.fail(err)
	}
	defer file.Close()

	result, err := c.s.client().Import(ctx, filepath.Base(path), file)
	if err != nil {
		return c.s.fail(err)
	}
	fmt.Fprintf(c.s.Out, "%d gastos importados correctamente\n", result.Imported)
	return subcommands.ExitSuccess
}

type listCmd struct {
	s        *Settings
	category string
	from     string
	to       string
	skip     int
	limit    int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list stored expenses, newest first" }
func (*listCmd) Usage() string {
	return `gastosctl list [-category <name>] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-skip N] [-limit N]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "category", "", "Only expenses in this category.")
	f.StringVar(&c.from, "from", "", "Only expenses on or after this date.")
	f.StringVar(&c.to, "to", "", "Only expenses on or before this date.")
	f.IntVar(&c.skip, "skip", 0, "Rows to skip.")
	f.IntVar(&c.limit, "limit", 0, "Maximum rows to return (server default when 0).")
}

func (c *listCmd) filter() (core.ExpenseFilter, error) {
	filter := core.ExpenseFilter{Skip: c.skip, Limit: c.limit}
	if c.category != "" {
		filter.Category = core.StringPtr(c.category)
	}
	for _, d := range []struct {
		raw string
		dst **core.Date
	}{{c.from, &filter.StartDate}, {c.to, &filter.EndDate}} {
		if d.raw == "" {
			continue
		}
		parsed, err := core.ParseDate(d.raw)
		if err != nil {
			return filter, err
		}
		*d.dst = &parsed
	}
	return filter, nil
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := c.filter()
	if err != nil {
		return c.s.fail(err)
	}
	expenses, err := c.s.client().SearchExpenses(ctx, filter)
	if err != nil {
		return c.s.fail(err)
	}

	tw := tabwriter.NewWriter(c.s.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFECHA\tIMPORTE\tCATEGORÍA\tDESCRIPCIÓN")
	for _, e := range expenses {
		category := e.CategoryLabel()
		if e.IsCorrected {
			category += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Date, dashboard.FormatAmount(e.Amount), category, e.Description)
	}
	if err := tw.Flush(); err != nil {
		return c.s.fail(err)
	}
	fmt.Fprintf(c.s.Out, "%d registros\n", len(expenses))
	return subcommands.ExitSuccess
}

type kpisCmd struct {
	s     *Settings
	year  int
	month int
}

func (*kpisCmd) Name() string     { return "kpis" }
func (*kpisCmd) Synopsis() string { return "show spending totals by category and month" }
func (*kpisCmd) Usage() string {
	return `gastosctl kpis [-year YYYY] [-month M]

  Totals only count spending. A month without a year matches that month in
  every year.
`
}

func (c *kpisCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", 0, "Restrict to this year.")
	f.IntVar(&c.month, "month", 0, "Restrict to this month (1-12).")
}

func (c *kpisCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var filter core.KPIFilter
	if c.year != 0 {
		filter.Year = core.IntPtr(c.year)
	}
	if c.month != 0 {
		filter.Month = core.IntPtr(c.month)
	}
	if err := filter.Validate(); err != nil {
		return c.s.fail(err)
	}

	k, err := c.s.client().GetKPIs(ctx, filter)
	if err != nil {
		return c.s.fail(err)
	}
	cards := dashboard.BuildCards(k)

	tw := tabwriter.NewWriter(c.s.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total Gastos\t%s\n", dashboard.FormatAmount(cards.Total))
	fmt.Fprintf(tw, "Movimientos\t%d\n", cards.Count)
	fmt.Fprintf(tw, "Media / Movimiento\t%s\n", dashboard.FormatAmount(cards.Average))
	fmt.Fprintln(tw, "\t")
	for _, s := range dashboard.BuildCharts(k).Categories {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\n", s.Name, dashboard.FormatAmount(s.Amount), s.Percent)
	}
	months := make([]string, 0, len(k.ByMonth))
	for m := range k.ByMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	if len(months) > 0 {
		fmt.Fprintln(tw, "\t")
	}
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%s\n", m, dashboard.FormatAmount(k.ByMonth[m]))
	}
	if err := tw.Flush(); err != nil {
		return c.s.fail(err)
	}
	return subcommands.ExitSuccess
}

type categorizeCmd struct {
	s           *Settings
	subcategory string
}

func (*categorizeCmd) Name() string     { return "categorize" }
func (*categorizeCmd) Synopsis() string { return "correct the category of an expense" }
func (*categorizeCmd) Usage() string {
	return fmt.Sprintf(`gastosctl categorize [-sub <subcategory>] <id> <category>

  Categories: %s
  The correction is remembered and used to classify later imports.
`, strings.Join(core.CategoryNames(), ", "))
}

func (c *categorizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subcategory, "sub", "", "Also set the subcategory.")
}

func (c *categorizeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return subcommands.ExitUsageError
	}
	id, err := parseID(f.Arg(0))
	if err != nil {
		return c.s.fail(err)
	}
	update := core.ExpenseUpdate{Category: core.StringPtr(f.Arg(1))}
	if c.subcategory != "" {
		update.Subcategory = core.StringPtr(c.subcategory)
	}
	if err := update.Validate(); err != nil {
		return c.s.fail(err)
	}

	e, err := c.s.client().UpdateExpense(ctx, id, update)
	if err != nil {
		return c.s.fail(err)
	}
	fmt.Fprintf(c.s.Out, "%d\t%s\t%s\n", e.ID, e.CategoryLabel(), e.Description)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	s *Settings
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete an expense" }
func (*deleteCmd) Usage() string {
	return `gastosctl delete <id>
`
}
func (*deleteCmd) SetFlags(*flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	id, err := parseID(f.Arg(0))
	if err != nil {
		return c.s.fail(err)
	}
	if err := c.s.client().DeleteExpense(ctx, id); err != nil {
		if client.IsNotFound(err) {
			return c.s.fail(fmt.Errorf("expense %d not found", id))
		}
		return c.s.fail(err)
	}
	fmt.Fprintf(c.s.Out, "deleted %d\n", id)
	return subcommands.ExitSuccess
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", s)
	}
	return id, nil
}
