package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-pipeline/internal/master"
	"github.com/sells-group/invoice-pipeline/pkg/kintone"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Company master utilities",
}

var masterCheckCmd = &cobra.Command{
	Use:   "check <vendor-name>",
	Short: "Show how a vendor name would match against the company master",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := master.Load(cfg.Pipeline.CompanyMasterPath)
		if err != nil {
			return err
		}

		result := m.Match(args[0], cfg.Pipeline.FuzzyMatchThreshold)
		fmt.Printf("normalized: %s\n", master.NormalizeName(args[0]))
		fmt.Printf("method:     %s\n", result.Method)
		if result.MatchedCode != "" {
			fmt.Printf("code:       %s\n", result.MatchedCode)
		}
		fmt.Printf("score:      %.3f\n", result.Score)
		return nil
	},
}

var masterSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local company master from the record store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RecordStore.MasterAppID == "" {
			return fmt.Errorf("recordstore.master_app_id is required for sync")
		}
		token := cfg.RecordStore.MasterAPIToken
		if token == "" {
			token = cfg.RecordStore.APIToken
		}

		client := kintone.NewClient(cfg.RecordStore.Domain, token,
			kintone.WithRateLimit(cfg.RecordStore.RateLimit))

		count, err := master.Sync(cmd.Context(), client, cfg.RecordStore.MasterAppID, cfg.Pipeline.CompanyMasterPath)
		if err != nil {
			return err
		}

		zap.L().Info("company master synced",
			zap.Int("entries", count),
			zap.String("path", cfg.Pipeline.CompanyMasterPath),
		)
		return nil
	},
}

func init() {
	masterCmd.AddCommand(masterCheckCmd)
	masterCmd.AddCommand(masterSyncCmd)
	rootCmd.AddCommand(masterCmd)
}
