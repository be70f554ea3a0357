package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/gridflex/internal/analysis"
	"github.com/jgoulah/gridflex/internal/cache"
	"github.com/jgoulah/gridflex/internal/chart"
	"github.com/jgoulah/gridflex/internal/config"
	"github.com/jgoulah/gridflex/internal/database"
)

var (
	cfgFile      string
	dbPath       string
	workbookPath string
	sheetName    string
	verbose      bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "gridflex",
	Short: "Estimate consumption flexibility from monthly energy history",
	Long: `GridFlex reads a consumption spreadsheet, aggregates each company's history by month
and derives a robust band (median ± k·MAD/0.6745) whose in-band months give an
adjusted mean and a flexibility estimate. Results can be stored in a local SQLite
database, published to MQTT or Home Assistant, and browsed on a web dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
	rootCmd.PersistentFlags().StringVar(&workbookPath, "workbook", "", "consumption workbook (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sheetName, "sheet", "", "sheet name (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if workbookPath != "" {
		cfg.Workbook.Path = workbookPath
	}
	if sheetName != "" {
		cfg.Workbook.Sheet = sheetName
	}
	return cfg, nil
}

// openDB opens the database connection
func openDB(cfg *config.Config) (*database.DB, error) {
	path := cfg.GetDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newAnalyzer wires the table cache and analyzer for the configured workbook
func newAnalyzer(cfg *config.Config) (*analysis.Analyzer, *cache.TableCache) {
	tables := cache.New(
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithModTimeCheck(cfg.Cache.WatchModTime),
		cache.WithLogger(logger),
	)
	return analysis.NewAnalyzer(tables, cfg.GetWorkbook(), cfg.GetSheet(), logger), tables
}

// pngOptions maps the chrome settings onto the chart renderer
func pngOptions(cfg *config.Config) chart.PNGOptions {
	return chart.PNGOptions{
		Timeout:  cfg.Chrome.Timeout,
		Width:    cfg.Chrome.Width,
		Height:   cfg.Chrome.Height,
		ExecPath: cfg.Chrome.ExecPath,
	}
}
