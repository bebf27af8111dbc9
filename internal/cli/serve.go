package cli

import (
	"github.com/spf13/cobra"

	"github.com/sirazahmedsyed/product-stock-service/internal/app"
	"github.com/sirazahmedsyed/product-stock-service/internal/config"
	"github.com/sirazahmedsyed/product-stock-service/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stock coordination server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		return app.New(cfg, logger).Run(cmd.Context())
	},
}
