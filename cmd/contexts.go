package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cqlconn/internal/connections/application"
	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/presentation"
)

var contextDisplay string

var contextsAddCmd = &cobra.Command{
	Use:   "contexts:add <connection> <Type/ID>",
	Short: "Add or replace a context on a connection",
	Long: `Add a context to a connection. A context with the same Type/ID key replaces
the stored one.

Examples:
  cqlconn contexts:add Local Patient/123
  cqlconn contexts:add Local Patient/123 --display "Jane Doe"`,
	Args: cobra.ExactArgs(2),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *application.Service, args []string) error {
		resourceType, resourceID, err := domain.ParseContextKey(args[1])
		if err != nil {
			return err
		}
		c := domain.NewContext(resourceType, resourceID).WithDisplay(contextDisplay)
		if err := svc.UpsertContext(ctx, args[0], c); err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(
			presentation.ResultDTO{Action: "context_upserted", Connection: args[0], Context: string(c.Key())})
	}),
}

var contextsDeleteCmd = &cobra.Command{
	Use:   "contexts:delete <connection> <Type/ID>",
	Short: "Remove a context from a connection",
	Args:  cobra.ExactArgs(2),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *application.Service, args []string) error {
		if err := svc.DeleteContext(ctx, args[0], domain.ContextKey(args[1])); err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(
			presentation.ResultDTO{Action: "context_deleted", Connection: args[0], Context: args[1]})
	}),
}

func init() {
	contextsAddCmd.Flags().StringVar(&contextDisplay, "display", "", "Display label for the context")
	rootCmd.AddCommand(contextsAddCmd, contextsDeleteCmd)
}
