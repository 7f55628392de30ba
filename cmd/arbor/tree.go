package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/internal/presentation/tree"
)

var treeCmd = &cobra.Command{
	Use:   "tree <workspace-id>",
	Short: "Render the workspace as a status-colored tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := openClient(cmd)
		if err != nil {
			fmt.Printf("Error opening arbor: %v\n", err)
			os.Exit(1)
		}

		g, err := client.Graph(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading workspace: %v\n", err)
			os.Exit(1)
		}

		if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
			out, err := graph.GenerateMermaid(g)
			if err != nil {
				fmt.Printf("Error rendering graph: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(out)
			return
		}

		// Plain output for pipes and dumb terminals.
		renderer := tree.NewPlainRenderer()
		if term.IsTerminal(int(os.Stdout.Fd())) {
			renderer = tree.NewRenderer()
		}

		out, err := renderer.Render(g)
		if err != nil {
			fmt.Printf("Error rendering tree: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().Bool("mermaid", false, "Emit Mermaid flowchart syntax instead of a tree")
}
