package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCompany string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	Long:  `Displays analyses saved with "analyze --save", newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listCompany, "company", "", "Filter by company")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	analyses, err := db.ListAnalyses(listCompany)
	if err != nil {
		return fmt.Errorf("listing analyses: %w", err)
	}

	if len(analyses) == 0 {
		if listCompany != "" {
			fmt.Printf("No analyses found for %s\n", listCompany)
		} else {
			fmt.Println("No analyses found")
		}
		return nil
	}

	fmt.Println("------------------------------------------------------------------------------------------")
	fmt.Printf("%-36s  %-24s  %2s  %12s  %-14s  %s\n", "ID", "Company", "k", "Flexibility", "Computed", "Published")
	fmt.Println("------------------------------------------------------------------------------------------")

	for _, a := range analyses {
		published := ""
		if a.Published {
			published = "✓"
		}
		fmt.Printf("%-36s  %-24s  %2d  %11.2f%%  %-14s  %s\n",
			a.ID, truncate(a.Company, 24), a.Band.K, a.Band.FlexibilityPct, humanize.Time(a.CreatedAt), published)
	}

	fmt.Println("------------------------------------------------------------------------------------------")
	fmt.Printf("%d analyses\n", len(analyses))

	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
