package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces in the store",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := openClient(cmd)
		if err != nil {
			fmt.Printf("Error opening arbor: %v\n", err)
			os.Exit(1)
		}

		ids, err := client.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing workspaces: %v\n", err)
			os.Exit(1)
		}

		if len(ids) == 0 {
			fmt.Println("No workspaces found.")
			return
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
