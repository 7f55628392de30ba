package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
)

var showCmd = &cobra.Command{
	Use:   "show <workspace-id> <node-id>",
	Short: "Show a node with its resolved context, info document and log",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		workspaceID, nodeID := args[0], args[1]

		client, _, err := openClient(cmd)
		if err != nil {
			fmt.Printf("Error opening arbor: %v\n", err)
			os.Exit(1)
		}

		ctx := cmd.Context()
		node, err := client.GetNode(ctx, workspaceID, nodeID)
		if err != nil {
			fmt.Printf("Error loading node: %v\n", err)
			os.Exit(1)
		}

		nodeContext, err := client.Context(ctx, workspaceID, nodeID)
		if err != nil {
			fmt.Printf("Error resolving context: %v\n", err)
			os.Exit(1)
		}

		info, _ := client.Content().ReadInfo(ctx, workspaceID, nodeID)
		log, _ := client.Content().ReadLog(ctx, workspaceID, nodeID)

		markdown := buildNodeMarkdown(node, nodeContext, info, log)

		if term.IsTerminal(int(os.Stdout.Fd())) {
			render := tui.NewMarkdownRenderer()
			if out, err := render(markdown); err == nil {
				fmt.Print(out)
				return
			}
		}
		fmt.Print(markdown)
	},
}

func buildNodeMarkdown(node *domain.Node, nodeContext *domain.NodeContext, info, log string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", node.Title)
	fmt.Fprintf(&sb, "- **ID**: `%s`\n", node.ID)
	fmt.Fprintf(&sb, "- **Type**: %s\n", node.Type)
	fmt.Fprintf(&sb, "- **Status**: %s\n", node.Status)
	if node.Role != "" {
		fmt.Fprintf(&sb, "- **Role**: %s\n", node.Role)
	}
	if node.Isolate {
		sb.WriteString("- **Isolated**: yes\n")
	}
	if node.Requirement != "" {
		fmt.Fprintf(&sb, "\n## Requirement\n\n%s\n", node.Requirement)
	}
	if node.Conclusion != "" {
		fmt.Fprintf(&sb, "\n## Conclusion\n\n%s\n", node.Conclusion)
	}

	if len(nodeContext.Chain) > 0 {
		sb.WriteString("\n## Context chain\n\n")
		for _, entry := range nodeContext.Chain {
			fmt.Fprintf(&sb, "- %s\n", entry.Title)
		}
		if nodeContext.Truncated {
			sb.WriteString("\n_Truncated at an isolation boundary._\n")
		}
	}

	if len(nodeContext.References) > 0 {
		sb.WriteString("\n## References\n\n")
		for _, ref := range nodeContext.References {
			if ref.Description != "" {
				fmt.Fprintf(&sb, "- `%s`: %s\n", ref.Target, ref.Description)
			} else {
				fmt.Fprintf(&sb, "- `%s`\n", ref.Target)
			}
		}
	}

	if info != "" {
		fmt.Fprintf(&sb, "\n## Info\n\n%s\n", info)
	}
	if log != "" {
		fmt.Fprintf(&sb, "\n## Activity log\n\n%s\n", log)
	}

	return sb.String()
}

func init() {
	rootCmd.AddCommand(showCmd)
}
