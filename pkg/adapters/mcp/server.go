// Package mcp exposes the workspace manager as an MCP server so agents can
// drive the work graph through tool calls, over stdio or SSE.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/graph"
	"github.com/aretw0/arbor/pkg/workspace"
)

// NodeResponse is the unified tool result for node-level operations.
type NodeResponse struct {
	Node *domain.Node `json:"node" jsonschema_description:"The node after the operation"`
}

// ContextResponse wraps resolved executor context.
type ContextResponse struct {
	Context *domain.NodeContext `json:"context" jsonschema_description:"Assembled executor context"`
}

// DispatchResponse wraps the workspace dispatch record.
type DispatchResponse struct {
	Dispatch *domain.DispatchConfig `json:"dispatch" jsonschema_description:"Workspace dispatch configuration"`
}

// DeleteResponse lists the removed subtree.
type DeleteResponse struct {
	Removed []string `json:"removed" jsonschema_description:"IDs of removed nodes, parent before children"`
}

// Server wraps the workspace Manager and exposes it as an MCP server.
type Server struct {
	manager   *workspace.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(manager *workspace.Manager, logger *slog.Logger) *Server {
	s := &Server{
		manager:   manager,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
		logger:    logger,
	}
	s.registerWorkspaceTools()
	s.registerNodeTools()
	s.registerDispatchTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// decode maps loosely typed tool arguments onto a request struct.
func decode(args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}

func (s *Server) registerWorkspaceTools() {
	initTool := mcp.NewTool("workspace_init",
		mcp.WithDescription("Create a workspace with a planning root node."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Root node title")),
		mcp.WithString("requirement", mcp.Description("What the workspace must achieve")),
	)
	s.mcpServer.AddTool(initTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			WorkspaceID string `json:"workspace_id"`
			Title       string `json:"title"`
			Requirement string `json:"requirement"`
		}
		if err := decode(request.GetArguments(), &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		g, err := s.manager.Init(ctx, args.WorkspaceID, args.Title, args.Requirement)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(g)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	listTool := mcp.NewTool("workspace_list",
		mcp.WithDescription("List known workspace ids."),
	)
	s.mcpServer.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) registerNodeTools() {
	createTool := mcp.NewTool("node_create",
		mcp.WithDescription("Create a node under a planning parent."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent node ID (must be a planning node)")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type: planning or execution")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Node title")),
		mcp.WithString("requirement", mcp.Description("What the node must achieve")),
		mcp.WithString("role", mcp.Description("Optional role: info_collection, validation or summary")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(createTool, mcp.NewStructuredToolHandler(s.handleNodeCreate))

	getTool := mcp.NewTool("node_get",
		mcp.WithDescription("Get a single node."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleNodeGet))

	transitionTool := mcp.NewTool("node_transition",
		mcp.WithDescription("Apply a lifecycle action to a node: start, submit, complete, fail, retry, reopen or cancel."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Lifecycle action")),
		mcp.WithString("conclusion", mcp.Description("Result summary; required for terminal success/failure")),
		mcp.WithString("reason", mcp.Description("Free-form reason, used as conclusion fallback")),
		mcp.WithString("commit_id", mcp.Description("Producing commit, git dispatch mode only")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(transitionTool, mcp.NewStructuredToolHandler(s.handleNodeTransition))

	splitTool := mcp.NewTool("node_split",
		mcp.WithDescription("Carve a new execution child out of an in-progress planning node."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("In-progress planning node")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title for the new child")),
		mcp.WithString("requirement", mcp.Description("Requirement for the new child")),
		mcp.WithBoolean("inherit_context", mcp.Description("Copy the parent's active references onto the child")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(splitTool, mcp.NewStructuredToolHandler(s.handleNodeSplit))

	moveTool := mcp.NewTool("node_move",
		mcp.WithDescription("Reparent a node under another planning node."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to move")),
		mcp.WithString("new_parent_id", mcp.Required(), mcp.Description("Destination planning node")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(moveTool, mcp.NewStructuredToolHandler(s.handleNodeMove))

	deleteTool := mcp.NewTool("node_delete",
		mcp.WithDescription("Delete a node and its whole subtree."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to delete")),
		mcp.WithOutputSchema[DeleteResponse](),
	)
	s.mcpServer.AddTool(deleteTool, mcp.NewStructuredToolHandler(s.handleNodeDelete))

	isolateTool := mcp.NewTool("node_isolate",
		mcp.WithDescription("Set or clear the context isolation boundary on a node."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithBoolean("isolate", mcp.Required(), mcp.Description("Boundary on or off")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(isolateTool, mcp.NewStructuredToolHandler(s.handleNodeIsolate))

	referenceTool := mcp.NewTool("node_reference",
		mcp.WithDescription("Manage node references: add, remove, expire or activate."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithString("op", mcp.Required(), mcp.Description("Sub-operation: add, remove, expire, activate")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Reference target (path, URL or node id)")),
		mcp.WithString("description", mcp.Description("Why the reference matters (add only)")),
		mcp.WithOutputSchema[NodeResponse](),
	)
	s.mcpServer.AddTool(referenceTool, mcp.NewStructuredToolHandler(s.handleNodeReference))

	contextTool := mcp.NewTool("context_get",
		mcp.WithDescription("Assemble executor context for a node: ancestor chain, references, child conclusions and rules."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithOutputSchema[ContextResponse](),
	)
	s.mcpServer.AddTool(contextTool, mcp.NewStructuredToolHandler(s.handleContextGet))
}

func (s *Server) registerDispatchTools() {
	enableTool := mcp.NewTool("dispatch_enable",
		mcp.WithDescription("Enable dispatch for a workspace, optionally git-backed with process and backup branches."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithBoolean("use_git", mcp.Description("Cut git branches and track per-node commits")),
		mcp.WithOutputSchema[DispatchResponse](),
	)
	s.mcpServer.AddTool(enableTool, mcp.NewStructuredToolHandler(s.handleDispatchEnable))

	queryTool := mcp.NewTool("dispatch_query",
		mcp.WithDescription("Report pending dispatch reconciliation work: process-branch commits and nodes awaiting commits."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithOutputSchema[dispatch.Report](),
	)
	s.mcpServer.AddTool(queryTool, mcp.NewStructuredToolHandler(s.handleDispatchQuery))

	disableTool := mcp.NewTool("dispatch_disable",
		mcp.WithDescription("Disable dispatch, reconciling the process branch with a merge strategy: sequential, squash, cherry-pick or skip."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithString("strategy", mcp.Required(), mcp.Description("Merge strategy")),
		mcp.WithString("commit_message", mcp.Description("Message for the squash commit")),
		mcp.WithArray("commits", mcp.Description("Commit ids for cherry-pick"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("keep_backup_branch", mcp.Description("Keep the backup branch after disabling")),
		mcp.WithBoolean("keep_process_branch", mcp.Description("Keep the process branch after disabling")),
		mcp.WithOutputSchema[dispatch.DisableResult](),
	)
	s.mcpServer.AddTool(disableTool, mcp.NewStructuredToolHandler(s.handleDispatchDisable))

	switchTool := mcp.NewTool("dispatch_switch_mode",
		mcp.WithDescription("Switch between git and non-git dispatch while no node is in progress."),
		mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		mcp.WithBoolean("use_git", mcp.Required(), mcp.Description("Target mode")),
		mcp.WithOutputSchema[DispatchResponse](),
	)
	s.mcpServer.AddTool(switchTool, mcp.NewStructuredToolHandler(s.handleDispatchSwitch))
}

// Handler methods for structured tools

func (s *Server) handleNodeCreate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID string   `json:"workspace_id"`
		ParentID    string   `json:"parent_id"`
		Type        string   `json:"type"`
		Title       string   `json:"title"`
		Requirement string   `json:"requirement"`
		Role        string   `json:"role"`
		References  []string `json:"references"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}

	refs := make([]domain.Reference, 0, len(in.References))
	for _, target := range in.References {
		refs = append(refs, domain.Reference{Target: target})
	}

	node, err := s.manager.CreateNode(ctx, in.WorkspaceID, graph.CreateRequest{
		ParentID:    in.ParentID,
		Type:        domain.NodeType(in.Type),
		Title:       in.Title,
		Requirement: in.Requirement,
		Role:        domain.Role(in.Role),
		References:  refs,
	})
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleNodeGet(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}
	node, err := s.manager.GetNode(ctx, in.WorkspaceID, in.NodeID)
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleNodeTransition(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
		Action      string `json:"action"`
		Conclusion  string `json:"conclusion"`
		Reason      string `json:"reason"`
		CommitID    string `json:"commit_id"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}
	node, err := s.manager.Transition(ctx, in.WorkspaceID, in.NodeID, graph.TransitionRequest{
		Action:     domain.Action(in.Action),
		Conclusion: in.Conclusion,
		Reason:     in.Reason,
		CommitID:   in.CommitID,
	})
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleNodeSplit(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID    string `json:"workspace_id"`
		ParentID       string `json:"parent_id"`
		Title          string `json:"title"`
		Requirement    string `json:"requirement"`
		InheritContext bool   `json:"inherit_context"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}
	node, err := s.manager.Split(ctx, in.WorkspaceID, in.ParentID, graph.SplitRequest{
		Title:          in.Title,
		Requirement:    in.Requirement,
		InheritContext: in.InheritContext,
	})
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleNodeMove(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
		NewParentID string `json:"new_parent_id"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}
	node, err := s.manager.Move(ctx, in.WorkspaceID, in.NodeID, in.NewParentID)
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleNodeDelete(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DeleteResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
	}
	if err := decode(args, &in); err != nil {
		return DeleteResponse{}, err
	}
	removed, err := s.manager.Delete(ctx, in.WorkspaceID, in.NodeID)
	if err != nil {
		return DeleteResponse{}, err
	}
	return DeleteResponse{Removed: removed}, nil
}

func (s *Server) handleNodeIsolate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
		Isolate     bool   `json:"isolate"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}
	node, err := s.manager.SetIsolate(ctx, in.WorkspaceID, in.NodeID, in.Isolate)
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleNodeReference(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NodeResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
		Op          string `json:"op"`
		Target      string `json:"target"`
		Description string `json:"description"`
	}
	if err := decode(args, &in); err != nil {
		return NodeResponse{}, err
	}
	node, err := s.manager.Reference(ctx, in.WorkspaceID, in.NodeID, workspace.ReferenceRequest{
		Op:          workspace.ReferenceOp(in.Op),
		Target:      in.Target,
		Description: in.Description,
	})
	if err != nil {
		return NodeResponse{}, err
	}
	return NodeResponse{Node: node}, nil
}

func (s *Server) handleContextGet(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ContextResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		NodeID      string `json:"node_id"`
	}
	if err := decode(args, &in); err != nil {
		return ContextResponse{}, err
	}
	nodeContext, err := s.manager.Context(ctx, in.WorkspaceID, in.NodeID)
	if err != nil {
		return ContextResponse{}, err
	}
	return ContextResponse{Context: nodeContext}, nil
}

func (s *Server) handleDispatchEnable(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DispatchResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		UseGit      bool   `json:"use_git"`
	}
	if err := decode(args, &in); err != nil {
		return DispatchResponse{}, err
	}
	config, err := s.manager.DispatchEnable(ctx, in.WorkspaceID, in.UseGit)
	if err != nil {
		return DispatchResponse{}, err
	}
	return DispatchResponse{Dispatch: config}, nil
}

func (s *Server) handleDispatchQuery(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (dispatch.Report, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
	}
	if err := decode(args, &in); err != nil {
		return dispatch.Report{}, err
	}
	report, err := s.manager.DispatchQuery(ctx, in.WorkspaceID)
	if err != nil {
		return dispatch.Report{}, err
	}
	return *report, nil
}

func (s *Server) handleDispatchDisable(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (dispatch.DisableResult, error) {
	var in struct {
		WorkspaceID       string   `json:"workspace_id"`
		Strategy          string   `json:"strategy"`
		CommitMessage     string   `json:"commit_message"`
		Commits           []string `json:"commits"`
		KeepBackupBranch  bool     `json:"keep_backup_branch"`
		KeepProcessBranch bool     `json:"keep_process_branch"`
	}
	if err := decode(args, &in); err != nil {
		return dispatch.DisableResult{}, err
	}
	result, err := s.manager.DispatchDisable(ctx, in.WorkspaceID, dispatch.DisableRequest{
		Strategy:          domain.MergeStrategy(in.Strategy),
		CommitMessage:     in.CommitMessage,
		Commits:           in.Commits,
		KeepBackupBranch:  in.KeepBackupBranch,
		KeepProcessBranch: in.KeepProcessBranch,
	})
	if err != nil {
		return dispatch.DisableResult{}, err
	}
	return *result, nil
}

func (s *Server) handleDispatchSwitch(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DispatchResponse, error) {
	var in struct {
		WorkspaceID string `json:"workspace_id"`
		UseGit      bool   `json:"use_git"`
	}
	if err := decode(args, &in); err != nil {
		return DispatchResponse{}, err
	}
	config, err := s.manager.DispatchSwitchMode(ctx, in.WorkspaceID, in.UseGit)
	if err != nil {
		return DispatchResponse{}, err
	}
	return DispatchResponse{Dispatch: config}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: arbor://workspaces
	s.mcpServer.AddResource(mcp.NewResource("arbor://workspaces", "Known Workspaces",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list workspaces: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "arbor://workspaces",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
