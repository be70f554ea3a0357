package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/gridflex/internal/metrics"
	"github.com/jgoulah/gridflex/internal/web"
)

var (
	serveAddr string
	serveWarm bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flexibility dashboard",
	Long:  `Serves the dashboard page, the JSON API and Prometheus metrics until interrupted.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", true, "load the workbook before accepting requests")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	analyzer, tables := newAnalyzer(cfg)

	m := metrics.New()
	m.WatchCache(tables.Stats)
	analyzer.SetRecorder(m)

	if serveWarm {
		path, sheet := analyzer.Workbook()
		table, err := tables.Get(path, sheet)
		if err != nil {
			return err
		}
		logger.Info("workbook loaded",
			zap.String("path", table.Path),
			zap.String("sheet", table.Sheet),
			zap.Int("records", len(table.Records)),
			zap.Int("companies", len(table.Companies())))
	}

	srv := web.New(analyzer, tables, m, logger, web.Options{
		DefaultK:  cfg.GetDefaultK(),
		RenderPNG: cfg.Server.RenderPNG,
		PNG:       pngOptions(cfg),
	})

	fmt.Printf("Dashboard at http://%s\n", displayAddr(cfg.GetAddr()))
	return srv.Run(cmd.Context(), cfg.GetAddr())
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
