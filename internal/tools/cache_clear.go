package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/hostcache/internal/driver"
	web "github.com/leonardcser/hostcache/internal/web"
)

// CacheClearHandler returns the MCP tool handler for the "cache-clear" tool.
// With a host argument only that site's fetched pages are dropped; without
// one every cached fetch and search is.
func CacheClearHandler(d driver.Driver) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		host := strings.TrimSpace(req.GetString("host", ""))
		path, scope := web.RootPath, "all cached web results"
		if host != "" {
			path, scope = web.FetchPath(host), "cached pages for "+strings.ToLower(host)
		}
		if !d.Clear(path) {
			return mcp.NewToolResultError("cache clear failed: cache daemon did not respond"), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Cleared %s.", scope)), nil
	}
}
