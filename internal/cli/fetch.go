package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yakey01/dokterku-sub007/internal/control"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/fetch"
	"github.com/yakey01/dokterku-sub007/internal/manager"
)

var (
	fetchPeriod string
	fetchUser   string
	fetchJSON   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [variant]",
	Short: "Fetch and print the Jaspel items of a variant",
	Args:  cobra.ExactArgs(1),
	Run:   runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchPeriod, "period", "", "period as YYYY-MM (default current month)")
	fetchCmd.Flags().StringVar(&fetchUser, "user", "", "user id")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	variant, err := domain.ParseVariant(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg := loadConfig(cmd)
	cfg.Server.Port = 0
	cfg.Live.Enabled = false
	cfg.Refresh.Enabled = false
	cfg.Redis.URL = ""

	app, err := control.NewService(cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	period := fetchPeriod
	if period == "" {
		period = time.Now().Format(manager.PeriodLayout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := app.Orchestrator().Fetch(ctx, variant, period, fetch.Options{ForceRefresh: true, UserID: fetchUser})
	if err != nil {
		slog.Error("Fetch failed", "error", err)
		printClassified(err)
		os.Exit(1)
	}

	if fetchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tSTATUS")
	for _, it := range res.Items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.DateString(), it.Category, it.Amount.StringFixed(0), it.Status)
	}
	_ = w.Flush()

	fmt.Printf("\nendpoint=%s shape=%s quality=%d attempts=%d\n", res.Endpoint, res.Shape, res.QualityScore, res.Attempts)
	printSummary(res.Summary)
}

func printSummary(s domain.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "total\t%s\t(%d)\n", s.Total.StringFixed(0), s.Count)
	_, _ = fmt.Fprintf(w, "approved\t%s\t(%d)\n", s.Approved.StringFixed(0), s.ApprovedCount)
	_, _ = fmt.Fprintf(w, "pending\t%s\t(%d)\n", s.Pending.StringFixed(0), s.PendingCount)
	_, _ = fmt.Fprintf(w, "rejected\t%s\t(%d)\n", s.Rejected.StringFixed(0), s.RejectedCount)
	_ = w.Flush()
}

func printClassified(err error) {
	var cerr *domain.ClassifiedError
	if !errors.As(err, &cerr) {
		return
	}
	fmt.Printf("%s\n", cerr.UserMessage)
	for i, s := range cerr.Suggestions {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
}
