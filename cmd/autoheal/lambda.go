package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/cuemby/autoheal/pkg/reconciler"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function handler",
	Long: `Start the Lambda runtime loop. Each invocation payload (an EventBridge
alarm state change or an SNS event carrying a CloudWatch alarm) is decoded
and remediated, and the structured result is returned to the caller.

Configuration is validated once at cold start; a missing cluster name fails
the init phase before any invocation is accepted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		lambda.Start(handler(a.reconciler))
		return nil
	},
}

// handler adapts the reconciler to the Lambda handler signature
func handler(r *reconciler.Reconciler) func(ctx context.Context, payload json.RawMessage) (*types.Result, error) {
	return func(ctx context.Context, payload json.RawMessage) (*types.Result, error) {
		return r.Reconcile(ctx, payload)
	}
}
