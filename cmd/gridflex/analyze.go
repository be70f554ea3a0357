package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/gridflex/internal/analysis"
	"github.com/jgoulah/gridflex/internal/chart"
)

var (
	analyzeK    int
	analyzeSave bool
	analyzeHTML string
	analyzePNG  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company>",
	Short: "Compute the outlier band and flexibility for a company",
	Long: `Aggregates the company's consumption by month, computes the median/MAD band for
sensitivity k and prints the monthly series with the resulting estimates.
Use --save to store the result for later publishing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeK, "k", 0, "sensitivity between 1 and 5 (default from config, 2)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "store the analysis in the database")
	analyzeCmd.Flags().StringVar(&analyzeHTML, "html", "", "write the chart as an HTML page to this file")
	analyzeCmd.Flags().StringVar(&analyzePNG, "png", "", "write the chart as a PNG to this file (requires Chrome)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	k := analyzeK
	if !cmd.Flags().Changed("k") {
		k = cfg.GetDefaultK()
	}

	analyzer, _ := newAnalyzer(cfg)
	result, err := analyzer.Analyze(args[0], k)
	if err != nil {
		return err
	}

	printResult(result)

	spec := chart.Build(result)
	if analyzeHTML != "" {
		if err := writeHTML(analyzeHTML, spec); err != nil {
			return err
		}
		fmt.Printf("Chart written to %s\n", analyzeHTML)
	}
	if analyzePNG != "" {
		img, err := chart.RenderPNG(cmd.Context(), spec, pngOptions(cfg))
		if err != nil {
			return err
		}
		if err := os.WriteFile(analyzePNG, img, 0644); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		fmt.Printf("Chart written to %s (%s)\n", analyzePNG, humanize.Bytes(uint64(len(img))))
	}

	if analyzeSave {
		db, err := openDB(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		stored, err := db.SaveAnalysis(result.Record())
		if err != nil {
			return err
		}
		fmt.Printf("Saved analysis %s\n", stored.ID)
	}

	return nil
}

func printResult(r *analysis.Result) {
	band := r.Band

	fmt.Printf("\n%s consumption by month:\n", r.Company)
	fmt.Println("----------------------------------------")
	fmt.Printf("%-8s  %18s  %s\n", "Month", "Consumption", "In band")
	fmt.Println("----------------------------------------")
	for _, m := range r.Months {
		mark := ""
		if band.Contains(m.Consumption) {
			mark = "✓"
		}
		fmt.Printf("%-8s  %18s  %s\n", m.Month.Label(), humanize.CommafWithDigits(m.Consumption, 2), mark)
	}
	fmt.Println("----------------------------------------")

	fmt.Printf("Sensitivity (k):        %d\n", band.K)
	fmt.Printf("Median:                 %s\n", humanize.CommafWithDigits(band.Median, 2))
	fmt.Printf("MAD:                    %s\n", humanize.CommafWithDigits(band.MAD, 2))
	fmt.Printf("Lower bound (-%d σ):     %s\n", band.K, humanize.CommafWithDigits(band.Lower, 2))
	fmt.Printf("Upper bound (+%d σ):     %s\n", band.K, humanize.CommafWithDigits(band.Upper, 2))
	fmt.Printf("Adjusted mean:          %s\n", humanize.CommafWithDigits(band.AdjustedMean, 2))
	fmt.Printf("Months in band:         %d/%d\n", band.InBand, len(r.Months))
	fmt.Printf("Estimated flexibility:  %.2f%%\n", band.FlexibilityPct)
	if r.Dropped > 0 {
		fmt.Printf("Ignored %d rows with unreadable dates\n", r.Dropped)
	}
}

func writeHTML(path string, spec chart.Spec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if err := chart.RenderHTML(f, spec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
