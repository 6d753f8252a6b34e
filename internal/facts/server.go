package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// searchResultLimit bounds how many search hits a single tool call returns.
const searchResultLimit = 5

// Server wraps the MCP server with the facts API client.
type Server struct {
	mcpServer *mcpserver.MCPServer
	client    *Client
	logger    *slog.Logger
}

// NewServer creates and configures a new facts MCP server with all
// resources and tools registered.
func NewServer(client *Client, logger *slog.Logger) *Server {
	s := &Server{
		client: client,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"facts",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func (s *Server) registerResources() {
	// facts://info — usage notes for the tools exposed here.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"facts://info",
			"Facts Server Info",
			mcplib.WithResourceDescription("How to use the facts tools and which categories exist"),
			mcplib.WithMIMEType("text/markdown"),
		),
		s.handleInfo,
	)
}

func (s *Server) registerTools() {
	// facts_random — one random fact, no arguments.
	s.mcpServer.AddTool(
		mcplib.NewTool("facts_random",
			mcplib.WithDescription("Get one random fact"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
		),
		s.handleRandom,
	)

	// facts_categories — list the available categories.
	s.mcpServer.AddTool(
		mcplib.NewTool("facts_categories",
			mcplib.WithDescription("List the available fact categories"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
		),
		s.handleCategories,
	)

	// facts_by_category — one random fact from a named category.
	s.mcpServer.AddTool(
		mcplib.NewTool("facts_by_category",
			mcplib.WithDescription("Get one random fact from a specific category (e.g. dev, science, sport)"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("category",
				mcplib.Description("Category to draw the fact from; see facts_categories for valid values"),
				mcplib.Required(),
			),
		),
		s.handleByCategory,
	)

	// facts_search — keyword search, capped at searchResultLimit hits.
	s.mcpServer.AddTool(
		mcplib.NewTool("facts_search",
			mcplib.WithDescription("Search facts containing a word or phrase"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("query",
				mcplib.Description("Word or phrase to search for"),
				mcplib.Required(),
			),
		),
		s.handleSearch,
	)
}

func (s *Server) handleRandom(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	fact, err := s.client.Random(ctx)
	if err != nil {
		s.logger.Warn("facts: random lookup failed", "error", err)
		return errorResult(fmt.Sprintf("failed to fetch fact: %v", err)), nil
	}
	return textResult(fact.Value), nil
}

func (s *Server) handleCategories(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	categories, err := s.client.Categories(ctx)
	if err != nil {
		s.logger.Warn("facts: category lookup failed", "error", err)
		return errorResult(fmt.Sprintf("failed to fetch categories: %v", err)), nil
	}
	return textResult(strings.Join(categories, ", ")), nil
}

func (s *Server) handleByCategory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	category := request.GetString("category", "")
	if category == "" {
		return errorResult("category is required"), nil
	}

	fact, err := s.client.RandomByCategory(ctx, category)
	if err != nil {
		s.logger.Warn("facts: category fact lookup failed", "category", category, "error", err)
		return errorResult(fmt.Sprintf("failed to fetch fact for category %q: %v", category, err)), nil
	}
	return textResult(fact.Value), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return errorResult("query is required"), nil
	}

	matches, err := s.client.Search(ctx, query)
	if err != nil {
		s.logger.Warn("facts: search failed", "query", query, "error", err)
		return errorResult(fmt.Sprintf("failed to search facts: %v", err)), nil
	}
	if len(matches) > searchResultLimit {
		matches = matches[:searchResultLimit]
	}

	resultData, _ := json.Marshal(matches)
	return textResult(string(resultData)), nil
}

func (s *Server) handleInfo(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     infoText,
		},
	}, nil
}

const infoText = `# Facts MCP Server

Read-only access to a public facts API.

## Tools

1. facts_random — one random fact
2. facts_categories — list available categories
3. facts_by_category(category) — one random fact from a category
4. facts_search(query) — up to 5 facts matching a word or phrase

## Example

- Random fact: facts_random
- Programming facts: facts_by_category("dev")
- Facts about computers: facts_search("computer")
`

func textResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
