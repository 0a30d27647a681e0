package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/scriptforge/internal/workspace"
)

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceListCmd, workspaceShowCmd)
}

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Inspect the script workspace",
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspace files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := workspace.New(cfg.WorkspaceDir)

		files := store.List()
		if len(files) == 0 {
			fmt.Fprintln(os.Stdout, "(empty workspace)")
			return nil
		}
		for _, f := range files {
			fmt.Fprintln(os.Stdout, f)
		}
		return nil
	},
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show <filename>",
	Short: "Print a workspace file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := workspace.New(cfg.WorkspaceDir)

		content, err := store.Read(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, content)
		return nil
	},
}
