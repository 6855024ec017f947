// Package cli: MCP server facade entrypoint (`dcg mcp serve`).
package cli

import (
	"context"

	"github.com/dicklesworthstone/dcg/internal/mcpfacade"
	"github.com/dicklesworthstone/dcg/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server facade",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluate_command MCP tool over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, deps, opts, err := bootstrap()
		if err != nil {
			return err
		}
		logger, err := utils.InitMCPServerLogger()
		if err != nil {
			return err
		}
		logger.Info("mcp facade starting", "transport", "stdio")
		srv := mcpfacade.New(deps, opts)
		err = srv.Serve(context.Background())
		logger.Info("mcp facade stopped", "err", err)
		return err
	},
}
