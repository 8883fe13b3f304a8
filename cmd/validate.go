package cmd

import (
	"os"

	"cdc-pump/internal/broker"
	"cdc-pump/internal/connector"
	"cdc-pump/internal/validate"
	"cdc-pump/internal/warehouse"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reportPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check topics, connectors and warehouse data and write a health report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := a.runContext(cmd.Context())
		defer cancel()

		s := a.settings
		matcher := a.matcher()
		wh := warehouse.Open(s.Warehouse)
		defer wh.Close()

		checks := []validate.Check{
			&validate.TopicCheck{Source: broker.NewTopicLister(s.Broker, nil, a.logger), Matcher: matcher},
			&validate.ConnectorCheck{Source: connector.NewClient(s.Connector.URL, s.Connector.Timeout, a.logger)},
			&validate.WarehouseCheck{Source: wh, Matcher: matcher},
		}
		report := validate.NewValidator(checks, s.Validator.Policy(), s.Validator.CheckTimeout, a.logger).Run(ctx)

		path := reportPath
		if path == "" {
			path = report.DefaultPath(a.out)
		}
		if err := report.Write(a.fs, path); err != nil {
			a.logger.Error("failed to persist report", zap.String("path", path), zap.Error(err))
		} else {
			a.logger.Info("report written", zap.String("path", path), zap.String("run_id", report.RunID))
		}

		report.Render(os.Stdout)
		if code := report.ExitCode(); code != validate.ExitHealthy {
			return &exitError{code: code}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&reportPath, "report", "", "Report file (default: <out>/reports/health-<timestamp>.json)")
}
