package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List companies found in the workbook",
	Long:  `Loads the configured workbook sheet and lists every distinct company with its row count.`,
	Args:  cobra.NoArgs,
	RunE:  runCompanies,
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	analyzer, tables := newAnalyzer(cfg)
	table, err := tables.Get(analyzer.Workbook())
	if err != nil {
		return err
	}

	companies := table.Companies()
	if len(companies) == 0 {
		fmt.Printf("No companies found in %s (%s)\n", table.Path, table.Sheet)
		return nil
	}

	fmt.Printf("%-50s  %10s\n", "Company", "Rows")
	fmt.Println("--------------------------------------------------------------")
	for _, name := range companies {
		fmt.Printf("%-50s  %10s\n", name, humanize.Comma(int64(len(table.ForCompany(name)))))
	}
	fmt.Println("--------------------------------------------------------------")
	fmt.Printf("%d companies, %s rows\n", len(companies), humanize.Comma(int64(len(table.Records))))

	return nil
}
