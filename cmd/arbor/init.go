package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <workspace-id>",
	Short: "Create a workspace with a planning root node",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		requirement, _ := cmd.Flags().GetString("requirement")
		if title == "" {
			title = args[0]
		}

		client, _, err := openClient(cmd)
		if err != nil {
			fmt.Printf("Error opening arbor: %v\n", err)
			os.Exit(1)
		}

		g, err := client.Init(cmd.Context(), args[0], title, requirement)
		if err != nil {
			fmt.Printf("Error creating workspace: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Created workspace %s (root node %s)\n", g.WorkspaceID, g.RootID)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("title", "t", "", "Root node title (defaults to the workspace id)")
	initCmd.Flags().StringP("requirement", "r", "", "What the workspace must achieve")
}
