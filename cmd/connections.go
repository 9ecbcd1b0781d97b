package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cqlconn/internal/connections/application"
	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/presentation"
)

var (
	addContexts   []string
	addDisplay    string
	addSelect     bool
	clearSelected bool
)

var connectionsListCmd = &cobra.Command{
	Use:   "connections:list",
	Short: "List all connections",
	Long: `List all connections as JSON in the order they were added.

The selected connection has "current": true.

Examples:
  cqlconn connections:list

  # Names only
  cqlconn connections:list | jq -r '.[].name'`,
	Args: cobra.NoArgs,
	RunE: withService(func(_ context.Context, cmd *cobra.Command, svc *application.Service, _ []string) error {
		current := ""
		if c, ok := svc.GetCurrentConnection(); ok {
			current = c.Name
		}
		dtos := presentation.FromDomainConnections(svc.GetAllConnections(), current)
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatConnections(dtos)
	}),
}

var connectionsShowCmd = &cobra.Command{
	Use:   "connections:show <name>",
	Short: "Show one connection",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(_ context.Context, cmd *cobra.Command, svc *application.Service, args []string) error {
		conn, err := svc.GetConnection(args[0])
		if err != nil {
			return err
		}
		current := ""
		if c, ok := svc.GetCurrentConnection(); ok {
			current = c.Name
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatConnection(
			presentation.FromDomainConnection(conn, current))
	}),
}

var connectionsAddCmd = &cobra.Command{
	Use:   "connections:add <name> <endpoint>",
	Short: "Add a connection or update an existing one",
	Long: `Add a connection, or update the endpoint of an existing one.

Contexts given with --context are merged into the connection: a context with
the same key replaces the stored one and other stored contexts are kept.

Examples:
  cqlconn connections:add Local http://localhost:8080/fhir

  # With contexts, selecting it afterwards
  cqlconn connections:add Local http://localhost:8080/fhir \
    --context Patient/123 --context Encounter/e-1 --use`,
	Args: cobra.ExactArgs(2),
	RunE: withService(runConnectionsAdd),
}

func runConnectionsAdd(ctx context.Context, cmd *cobra.Command, svc *application.Service, args []string) error {
	contexts := make([]domain.Context, 0, len(addContexts))
	for _, key := range addContexts {
		resourceType, resourceID, err := domain.ParseContextKey(key)
		if err != nil {
			return err
		}
		contexts = append(contexts, domain.NewContext(resourceType, resourceID).WithDisplay(addDisplay))
	}

	conn := domain.NewConnection(args[0], args[1], contexts...)
	if err := svc.UpsertConnection(ctx, conn); err != nil {
		return err
	}
	result := presentation.ResultDTO{Action: "upserted", Connection: conn.Name}
	if addSelect {
		if err := svc.SetCurrentConnection(ctx, conn.Name); err != nil {
			return err
		}
		result.Current = conn.Name
	}
	return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(result)
}

var connectionsDeleteCmd = &cobra.Command{
	Use:   "connections:delete <name>",
	Short: "Delete a connection",
	Long: `Delete a connection. Deleting the selected connection clears the selection.
Deleting a connection that does not exist is not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *application.Service, args []string) error {
		if err := svc.DeleteConnection(ctx, args[0]); err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(
			presentation.ResultDTO{Action: "deleted", Connection: args[0]})
	}),
}

var connectionsUseCmd = &cobra.Command{
	Use:   "connections:use <name>",
	Short: "Select the current connection",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *application.Service, args []string) error {
		if err := svc.SetCurrentConnection(ctx, args[0]); err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(
			presentation.ResultDTO{Action: "selected", Current: args[0]})
	}),
}

var connectionsCurrentCmd = &cobra.Command{
	Use:   "connections:current",
	Short: "Show the current connection",
	Long:  `Show the current connection as JSON, or null when none is selected.`,
	Args:  cobra.NoArgs,
	RunE: withService(func(_ context.Context, cmd *cobra.Command, svc *application.Service, _ []string) error {
		conn, ok := svc.GetCurrentConnection()
		if !ok {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(nil)
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatConnection(
			presentation.FromDomainConnection(conn, conn.Name))
	}),
}

var connectionsClearCmd = &cobra.Command{
	Use:   "connections:clear",
	Short: "Delete every connection",
	Long: `Delete every connection and clear the selection.

With --selection only the selection is cleared and connections are kept.`,
	Args: cobra.NoArgs,
	RunE: withService(func(ctx context.Context, cmd *cobra.Command, svc *application.Service, _ []string) error {
		if clearSelected {
			if err := svc.ClearCurrentConnection(ctx); err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(
				presentation.ResultDTO{Action: "unselected"})
		}
		if err := svc.ClearConnections(ctx); err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).FormatResult(
			presentation.ResultDTO{Action: "cleared"})
	}),
}

func init() {
	connectionsAddCmd.Flags().StringArrayVar(&addContexts, "context", nil, "Context as Type/ID (can be repeated, e.g., --context Patient/123)")
	connectionsAddCmd.Flags().StringVar(&addDisplay, "display", "", "Display label for the contexts given with --context")
	connectionsAddCmd.Flags().BoolVar(&addSelect, "use", false, "Select the connection after adding it")
	connectionsClearCmd.Flags().BoolVar(&clearSelected, "selection", false, "Only clear the selection")

	rootCmd.AddCommand(
		connectionsListCmd,
		connectionsShowCmd,
		connectionsAddCmd,
		connectionsDeleteCmd,
		connectionsUseCmd,
		connectionsCurrentCmd,
		connectionsClearCmd,
	)
}
