package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/gridflex/internal/publisher"
	"github.com/jgoulah/gridflex/pkg/models"
)

var (
	publishCompany string
	publishSince   string
	publishAll     bool
	publishLimit   int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored analyses to MQTT and/or Home Assistant",
	Long:  `Reads stored analyses from the database and publishes each one to the enabled MQTT broker and Home Assistant HTTP API.`,
	Args:  cobra.NoArgs,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishCompany, "company", "", "Only publish analyses for this company")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish analyses computed since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all analyses (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of analyses to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var sinceDate *time.Time
	if publishSince != "" {
		since, err := parseDate(publishSince)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		sinceDate = &since
	}

	var analyses []models.Analysis
	if publishAll {
		// When using --all, force republish every stored analysis
		listed, err := db.ListAnalyses(publishCompany)
		if err != nil {
			return fmt.Errorf("listing analyses: %w", err)
		}
		for _, a := range listed {
			full, err := db.GetAnalysis(a.ID)
			if err != nil {
				return fmt.Errorf("loading analysis %s: %w", a.ID, err)
			}
			analyses = append(analyses, *full)
		}
	} else {
		// Default: only publish unpublished analyses
		analyses, err = db.ListUnpublished()
		if err != nil {
			return fmt.Errorf("listing analyses: %w", err)
		}
	}

	filtered := analyses[:0]
	for _, a := range analyses {
		if publishCompany != "" && a.Company != publishCompany {
			continue
		}
		if sinceDate != nil && a.CreatedAt.Before(*sinceDate) {
			continue
		}
		filtered = append(filtered, a)
	}

	if len(filtered) == 0 {
		if publishAll {
			fmt.Println("No analyses found")
		} else {
			fmt.Println("No unpublished analyses found")
		}
		return nil
	}

	if publishLimit > 0 && len(filtered) > publishLimit {
		filtered = filtered[:publishLimit]
		fmt.Printf("Limiting to %d analyses (--limit flag)\n", publishLimit)
	}

	fmt.Printf("Publishing %d analyses...\n", len(filtered))
	published := 0
	for i, a := range filtered {
		fmt.Printf("[%d/%d] Publishing %s k=%d (%.2f%%)... ", i+1, len(filtered), a.Company, a.Band.K, a.Band.FlexibilityPct)
		if err := pub.Publish(cmd.Context(), a); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			logger.Warn("publish failed", zap.String("id", a.ID), zap.Error(err))
			continue
		}

		if err := db.MarkPublished(a.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("\nSuccessfully published %d/%d analyses\n", published, len(filtered))
	return nil
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	// Try absolute date format first
	t, err := time.Parse("2006-01-02", dateStr)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		daysStr := dateStr[:len(dateStr)-1]
		var days int
		if _, err := fmt.Sscanf(daysStr, "%d", &days); err == nil {
			return time.Now().AddDate(0, 0, -days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
