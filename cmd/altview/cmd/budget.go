package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/javi11/altview/internal/bitmapcache"
	"github.com/javi11/altview/internal/membudget"
)

func init() {
	budgetCmd := &cobra.Command{
		Use:   "budget",
		Short: "Show the resolved memory ceiling and cache budget",
		Long: `Resolve the device memory ceiling (override, process limit, known hardware,
physical memory) and print the cache budget derived from it.`,
		RunE: runBudget,
	}

	rootCmd.AddCommand(budgetCmd)
}

func runBudget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	res := a.budgeter.Last()
	budget := a.cache.Budget()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Ceiling\t%d MB\n", res.CeilingMB)
	fmt.Fprintf(w, "Source\t%s\n", res.Source)
	if res.PhysicalMB > 0 {
		fmt.Fprintf(w, "Physical memory\t%d MB\n", res.PhysicalMB)
	}
	if res.Model != "" {
		fmt.Fprintf(w, "Hardware model\t%s\n", res.Model)
	}
	fmt.Fprintf(w, "Cache bytes\t%d MB\n", budget.MaxBytes/membudget.MB)
	fmt.Fprintf(w, "Cache entries\t%d\n", budget.MaxEntries)
	fmt.Fprintf(w, "Decoder\t%s\n", a.decoder.Name())
	return w.Flush()
}

// printCacheStats writes the cache counters.
func printCacheStats(w *tabwriter.Writer, stats bitmapcache.Stats) {
	fmt.Fprintf(w, "Cache entries\t%d / %d\n", stats.Entries, stats.Budget.MaxEntries)
	fmt.Fprintf(w, "Cache bytes\t%d MB / %d MB\n", stats.Bytes/membudget.MB, stats.Budget.MaxBytes/membudget.MB)
	fmt.Fprintf(w, "Weak entries\t%d\n", stats.Weak)
	fmt.Fprintf(w, "Evictions\t%d\n", stats.Evictions)
	fmt.Fprintf(w, "Hit rate\t%.1f%%\n", stats.HitRate()*100)
}
