package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with all code graph tools registered.
func NewServer(svc *CodeGraphService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "codegraph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_repository",
		Description: "Index a repository from scratch. Walks the file tree, parses source files using tree-sitter, extracts declarations and reference placeholders, and resolves cross-file references.",
	}, svc.IndexRepository)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_files",
		Description: "Apply an incremental change set to an indexed repository. Added and modified files are re-read from disk; deleted files are removed from the graph and resolutions into them invalidated.",
	}, svc.UpdateFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_declarations",
		Description: "Search for declarations (functions, classes) by name substring match. Optionally filter by kind and limit results.",
	}, svc.SearchDeclarations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_references",
		Description: "Run a full cross-file resolution pass: heal inconsistent placeholders, then resolve unresolved call sites and import sites against known declarations.",
	}, svc.ResolveReferences)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dead_code",
		Description: "Return functions that no resolved call site targets. Entry points and dynamically invoked functions appear here too, so treat results as candidates.",
	}, svc.DeadCode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "unresolved_references",
		Description: "List call sites and import sites that resolution could not match to any declaration.",
	}, svc.UnresolvedReferences)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "file_impact",
		Description: "Compute the blast radius of modifying a set of files: every file that transitively imports one of them, up to a depth limit.",
	}, svc.FileImpact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Return node and edge counts for an indexed repository, including resolved and unresolved placeholder totals.",
	}, svc.GraphStats)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until the
// client disconnects or ctx is canceled.
func RunStdio(ctx context.Context, svc *CodeGraphService) error {
	return NewServer(svc).Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts an HTTP server exposing the code graph MCP tools.
func RunHTTP(ctx context.Context, svc *CodeGraphService, addr string) error {
	server := NewServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
