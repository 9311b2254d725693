package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yakey01/dokterku-sub007/internal/control"
	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

var (
	normalizeVariant string
	normalizeJSON    bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize a saved API payload and report its shape, quality and summary",
	Args:  cobra.ExactArgs(1),
	Run:   runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeVariant, "variant", string(domain.VariantDokter), "dokter or paramedis")
	normalizeCmd.Flags().BoolVar(&normalizeJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) {
	variant, err := domain.ParseVariant(normalizeVariant)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	payload, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("Failed to read payload: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig(cmd)
	res, err := control.NewNormalizer(cfg.Quality).Normalize(payload, variant)
	if err != nil {
		fmt.Printf("Failed to normalize: %v\n", err)
		os.Exit(1)
	}

	if normalizeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}

	fmt.Printf("shape=%s records=%d items=%d skipped=%d\n", res.Shape, res.Records, len(res.Items), res.Skipped)
	q := res.Quality
	fmt.Printf("quality=%d (completeness %.0f, consistency %.0f, validity %.0f, accuracy %.0f)\n",
		res.QualityScore, q.Completeness, q.Consistency, q.Validity, q.Accuracy)
	printSummary(res.Summary)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Printf("error: %s\n", e)
	}
}
