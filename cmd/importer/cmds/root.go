package cmds

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Importer command to load task sheets into a rally game",
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
