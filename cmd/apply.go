package cmd

import (
	"context"
	"fmt"

	"cdc-pump/internal/connector"
	"cdc-pump/internal/errs"
	"cdc-pump/internal/provision"
	"cdc-pump/internal/warehouse"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	applyConnectors bool
	applyWarehouse  bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Regenerate artifacts, register connectors and provision the warehouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		conns, err := a.selectConnections(only)
		if err != nil {
			return err
		}
		// Neither flag means both.
		if !applyConnectors && !applyWarehouse {
			applyConnectors, applyWarehouse = true, true
		}

		ctx, cancel := a.runContext(cmd.Context())
		defer cancel()

		results := a.generate(ctx, conns)

		client := connector.NewClient(a.settings.Connector.URL, a.settings.Connector.Timeout, a.logger)
		wh := warehouse.Open(a.settings.Warehouse)
		defer wh.Close()
		emitter := provision.NewEmitter(a.settings.Warehouse, connector.NewBuilder(a.settings.Connector), a.settings.Validator.Policy(), a.logger)

		for i := range results {
			r := &results[i]
			if r.err != nil {
				continue
			}
			if applyWarehouse {
				if err := emitter.Apply(ctx, wh, r.statements); err != nil {
					r.err = &errs.ConnectivityError{Connection: r.conn.Name, Target: "warehouse", Cause: err}
				}
			}
			if r.err == nil && applyConnectors {
				r.err = a.registerConnector(ctx, client, r.spec)
			}
			if r.err != nil {
				a.logger.Warn("apply failed", zap.String("connection", r.conn.Name), zap.Error(r.err))
				continue
			}
			a.logger.Info("applied", zap.String("connection", r.conn.Name), zap.String("connector", r.spec.Name))
		}

		printGenerateSummary(results)
		return failuresExit(results)
	},
}

func init() {
	RootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringSliceVar(&only, "only", []string{}, "Only these connections (comma-separated)")
	applyCmd.Flags().BoolVar(&applyConnectors, "connectors", false, "Register connectors with Kafka Connect")
	applyCmd.Flags().BoolVar(&applyWarehouse, "warehouse", false, "Execute provisioning statements in ClickHouse")
}

func (a *app) registerConnector(ctx context.Context, client *connector.Client, spec connector.Spec) error {
	policy := a.settings.Validator.Policy()
	if _, err := policy.Do(ctx, func(ctx context.Context) error {
		return client.UpsertConfig(ctx, spec)
	}); err != nil {
		return fmt.Errorf("register connector %s: %w", spec.Name, err)
	}
	return nil
}
