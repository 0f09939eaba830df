package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobline/internal/app"
	"jobline/internal/aroflo"
	"jobline/internal/config"
	"jobline/internal/events"
	"jobline/internal/metrics"
	"jobline/internal/proofread"
	"jobline/internal/scorecard"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jl",
	Short: "Jobline CLI",
	Long: `Jobline pulls monthly figures from AroFlo into the business scorecard and
keeps job cards tidy before invoicing.
- test: check the API credentials and connection.
- update/report: sum a month of invoices; report --write also fills the scorecard workbook.
- proofread: check completed job descriptions and labour notes.
- mark-ready: move completed tasks to the Ready to Invoice substatus.
- fix: proofread, push corrected descriptions and mark every completed task ready.
Write commands only list what they would change until --apply is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() error {
	var err error
	cfg, err = config.Load(viper.New(), viper.GetString("env-file"))
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).With().Timestamp().Logger()
	return nil
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file read before the environment")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("env-file", rootCmd.PersistentFlags().Lookup("env-file"))
}

func registerCommands() {
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(proofreadCmd())
	rootCmd.AddCommand(markReadyCmd())
	rootCmd.AddCommand(fixCmd())
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify the AroFlo API connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.TestConnection(cmd.Context()); err != nil {
				return fmt.Errorf("could not connect to AroFlo API: %w", err)
			}
			if viper.GetBool("json") {
				return printJSON(map[string]bool{"connected": true})
			}
			fmt.Println("SUCCESS: Connected to AroFlo API")
			return nil
		},
	}
}

type period struct {
	month int
	year  int
}

func (p *period) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&p.month, "month", "m", 0, "month number (1-12), defaults to the current month")
	cmd.Flags().IntVarP(&p.year, "year", "y", 0, "year, defaults to the current year")
}

func (p period) resolve(now time.Time) (int, time.Month, error) {
	year, month := p.year, p.month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %d: must be 1-12", month)
	}
	return year, time.Month(month), nil
}

func updateCmd() *cobra.Command {
	var p period
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fetch a month of invoices and show the metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := p.resolve(time.Now())
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.TestConnection(cmd.Context()); err != nil {
				return fmt.Errorf("could not connect to AroFlo API: %w", err)
			}
			m, err := newAggregator(client).MonthlyReport(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(m)
			}
			fmt.Printf("Period: %s %d\n", month, year)
			label := primaryLabel()
			printRows("Metrics", [][2]string{
				{"Revenue", money(m.Revenue)},
				{"Gross Profit $", money(m.GrossProfit)},
				{"Net Profit $", money(m.NetProfit)},
				{"Completed Jobs", fmt.Sprint(m.CompletedJobs)},
				{"Average Job Value", money(m.AverageJobValue)},
				{label + " Jobs", fmt.Sprint(m.PrimaryClientJobs)},
				{label + " Value", money(m.PrimaryClientValue)},
				{"Other Client Jobs", fmt.Sprint(m.OtherClientJobs)},
				{"Other Client Value", money(m.OtherClientValue)},
			})
			return nil
		},
	}
	p.bind(cmd)
	return cmd
}

func reportCmd() *cobra.Command {
	var p period
	var write bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the monthly report",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := p.resolve(time.Now())
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			m, err := newAggregator(client).MonthlyReport(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			written := false
			if write {
				written = scorecard.New(cfg.ScorecardPath, logger).Apply(m, int(month))
			}
			if viper.GetBool("json") {
				out := map[string]any{"year": year, "month": int(month), "metrics": m}
				if write {
					out["scorecard_updated"] = written
				}
				if err := printJSON(out); err != nil {
					return err
				}
			} else {
				printReport(year, month, m)
			}
			if write && !written {
				return fmt.Errorf("scorecard %s was not updated", cfg.ScorecardPath)
			}
			if write && !viper.GetBool("json") {
				fmt.Printf("\nScorecard updated: %s\n", cfg.ScorecardPath)
			}
			return nil
		},
	}
	p.bind(cmd)
	cmd.Flags().BoolVar(&write, "write", false, "write the metrics into the scorecard workbook")
	return cmd
}

func printReport(year int, month time.Month, m metrics.MonthlyMetrics) {
	label := primaryLabel()
	fmt.Printf("Period: %s %d\n", month, year)
	printRows("Lagging/Past Metrics", [][2]string{
		{"Revenue/Sales Income", money(m.Revenue)},
		{"Gross Profit $", money(m.GrossProfit)},
		{"Net Profit $", money(m.NetProfit)},
		{"Gross Profit %", pct(m.GrossProfitPercent)},
		{"Net Profit %", pct(m.NetProfitPercent)},
		{"Completed Jobs", fmt.Sprint(m.CompletedJobs)},
		{"Average Job Value", money(m.AverageJobValue)},
	})
	printRows("Leading/Predictive Metrics", [][2]string{
		{label + " - # jobs", fmt.Sprint(m.PrimaryClientJobs)},
		{label + " - $ value", money(m.PrimaryClientValue)},
		{"Other Clients - # jobs", fmt.Sprint(m.OtherClientJobs)},
		{"Other Clients - $ value", money(m.OtherClientValue)},
		{"Jobs Total", money(m.JobsTotal)},
		{"% Sales from " + label, pct(m.PrimaryClientPercent)},
		{"% Sales from Other", pct(m.OtherClientPercent)},
	})
	printRows("Cost Breakdown", [][2]string{
		{"Materials Cost", money(m.MaterialsCost)},
		{"Labour Cost", money(m.LabourCost)},
		{"Total Costs", money(m.MaterialsCost + m.LabourCost)},
	})
}

func proofreadCmd() *cobra.Command {
	var showAll bool
	cmd := &cobra.Command{
		Use:   "proofread",
		Short: "Check completed job cards for spelling and grammar",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			corrector, err := newCorrector()
			if err != nil {
				return err
			}
			tasks, err := newAggregator(client).CompletedTasks(cmd.Context())
			if err != nil {
				return err
			}
			p := proofread.Proofreader{Corrector: corrector, Logger: logger}
			results := p.ProofreadTasks(cmd.Context(), tasks)
			if viper.GetBool("json") {
				return printJSON(results)
			}
			printProofread(results, showAll)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showAll, "show-all", false, "show jobs without errors too")
	return cmd
}

func printProofread(results []proofread.Result, showAll bool) {
	withErrors := 0
	for _, r := range results {
		if r.HasErrors() {
			withErrors++
		}
	}
	fmt.Printf("Total jobs checked: %d\nJobs with errors: %d\n", len(results), withErrors)

	for _, r := range results {
		if !r.HasErrors() && !(showAll && r.Original != "") {
			continue
		}
		fmt.Printf("\n%s\nJob ID: %s\nJob Name: %s\n", strings.Repeat("-", 70), r.TaskID, r.TaskName)
		if !r.HasErrors() {
			fmt.Printf("Status: OK\n\n--- TEXT ---\n%s\n", r.Original)
			continue
		}
		fmt.Printf("Status: ERRORS FOUND\n\n--- ORIGINAL TEXT ---\n%s\n\n--- CORRECTED TEXT ---\n%s\n\n", r.Original, r.Corrected)
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"#", "Issue", "Context", "Suggestions"})
		for i, d := range r.Diagnostics {
			tw.AppendRow(table.Row{i + 1, d.Message, d.Context, strings.Join(d.Suggestions, ", ")})
		}
		tw.Render()
	}
	if withErrors > 0 {
		fmt.Printf("\nFound errors in %d job(s)\n", withErrors)
	} else {
		fmt.Println("\nNo spelling or grammar errors found")
	}
}

func markReadyCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "mark-ready",
		Short: "Move completed tasks to Ready to Invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeAudit, err := newApp(nil)
			if err != nil {
				return err
			}
			defer closeAudit()
			res, err := a.MarkReady(cmd.Context(), apply)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				if err := printJSON(res); err != nil {
					return err
				}
			} else {
				fmt.Printf("Completed tasks: %d\nNeeding substatus update: %d\n", res.Completed, len(res.Pending))
				if len(res.Pending) > 0 {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Task No", "Task", "Current Substatus"})
					for _, p := range res.Pending {
						tw.AppendRow(table.Row{p.TaskNo, p.TaskName, p.CurrentSubstatus})
					}
					tw.Render()
				}
				switch {
				case !apply && len(res.Pending) > 0:
					fmt.Println("\nDry run: re-run with --apply to update these tasks")
				case apply:
					fmt.Printf("\nDone: %d updated, %d failed\n", res.Updated, len(res.Failures))
				}
			}
			return failuresErr(res.Failures)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "perform the updates")
	return cmd
}

func fixCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Proofread completed tasks, push fixes and mark them ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			corrector, err := newCorrector()
			if err != nil {
				return err
			}
			a, closeAudit, err := newApp(corrector)
			if err != nil {
				return err
			}
			defer closeAudit()
			rep, err := a.ProofreadAndFix(cmd.Context(), apply)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				if err := printJSON(rep); err != nil {
					return err
				}
			} else {
				printFix(rep)
			}
			return failuresErr(rep.Failures)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "push corrections and update substatuses")
	return cmd
}

func printFix(rep app.FixReport) {
	fmt.Printf("Completed tasks: %d\nJobs with errors: %d\n", len(rep.Jobs), rep.JobsWithErrors())
	for _, j := range rep.Jobs {
		if !j.HasErrors() {
			continue
		}
		fmt.Printf("\n%s\n%s [%s]\n", strings.Repeat("-", 70), j.TaskName, j.JobNumber)
		if j.DescriptionChanged() {
			for _, c := range app.WordChanges(j.Description, j.CorrectedDescription) {
				fmt.Printf("  description: %s\n", c)
			}
		}
		for _, n := range j.Notes {
			if !n.Changed {
				continue
			}
			for _, c := range app.WordChanges(n.Before, n.After) {
				fmt.Printf("  note by %s (%s): %s\n", n.User, n.WorkDate, c)
			}
		}
	}
	if !rep.Applied {
		fmt.Println("\nDry run: re-run with --apply to push corrections and mark tasks ready")
		return
	}
	if len(rep.Manual) > 0 {
		fmt.Println("\nTimesheet notes to correct by hand in AroFlo:")
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Job", "User", "Date", "Start", "Changes"})
		for _, m := range rep.Manual {
			tw.AppendRow(table.Row{m.Job, m.User, m.WorkDate, m.StartTime, strings.Join(m.Changes, "\n")})
		}
		tw.Render()
	}
	fmt.Printf("\nDone: %d description(s) fixed, %d task(s) marked ready, %d failed\n",
		rep.DescriptionsFixed, rep.Marked, len(rep.Failures))
}

// --- helpers ---

func newClient() (*aroflo.Client, error) {
	if err := cfg.Validate(); err != nil {
		var cfgErr *aroflo.ConfigError
		if errors.As(err, &cfgErr) && len(cfgErr.Missing) > 0 {
			return nil, fmt.Errorf("%w (environment or %s)", err, viper.GetString("env-file"))
		}
		return nil, err
	}
	return aroflo.New(cfg.Credentials(),
		aroflo.WithBaseURL(cfg.BaseURL),
		aroflo.WithCallsPerMinute(cfg.CallsPerMinute),
		aroflo.WithLogger(logger),
	), nil
}

func newAggregator(client *aroflo.Client) *metrics.Aggregator {
	return &metrics.Aggregator{Source: client, PrimaryClient: cfg.PrimaryClient, Logger: logger}
}

func newCorrector() (*proofread.Corrector, error) {
	vocab, err := proofread.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}
	c := &proofread.Corrector{
		Vocabulary: vocab,
		Grammar: proofread.NewLanguageTool(
			proofread.WithURL(cfg.LanguageToolURL),
			proofread.WithLanguage(cfg.Language),
			proofread.WithLogger(logger),
		),
		Logger: logger,
	}
	spell, err := proofread.LoadSpellChecker(cfg.Dictionary, vocab)
	if err != nil {
		logger.Warn().Err(err).Msg("spell-check fallback disabled")
	} else {
		c.Spell = spell
	}
	return c, nil
}

// newApp builds the write-back workflows. A nil checker is fine for
// workflows that never proofread.
func newApp(checker app.Checker) (*app.App, func() error, error) {
	client, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	audit, closeAudit, err := events.Open(cfg.AuditLog)
	if err != nil {
		return nil, nil, err
	}
	return &app.App{Remote: client, Checker: checker, Audit: audit, Logger: logger}, closeAudit, nil
}

func failuresErr(failures []app.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d update(s) failed", len(failures))
}

func primaryLabel() string {
	if cfg.PrimaryClient != "" {
		return cfg.PrimaryClient
	}
	return "Primary Client"
}

func printRows(title string, rows [][2]string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(title)
	for _, r := range rows {
		tw.AppendRow(table.Row{r[0], r[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tw.Render()
}

func money(v float64) string { return "$" + humanize.FormatFloat("#,###.##", v) }

func pct(v float64) string { return fmt.Sprintf("%.2f%%", v) }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
