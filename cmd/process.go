package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

var (
	processBucket      string
	processContentType string
)

var processCmd = &cobra.Command{
	Use:   "process <object-name>",
	Short: "Process a single invoice document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		event := model.Event{
			Bucket:      processBucket,
			ObjectName:  args[0],
			ContentType: processContentType,
		}

		result, runErr := env.Pipeline.Run(ctx, event)
		if result != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				zap.L().Warn("print result", zap.Error(err))
			}
		}
		return runErr
	},
}

func init() {
	processCmd.Flags().StringVar(&processBucket, "bucket", "local", "source bucket name")
	processCmd.Flags().StringVar(&processContentType, "content-type", "application/pdf", "document content type")
	rootCmd.AddCommand(processCmd)
}
