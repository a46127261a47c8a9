package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/hostcache/internal/config"
	"github.com/leonardcser/hostcache/internal/driver"
	"github.com/leonardcser/hostcache/internal/logger"
	tools "github.com/leonardcser/hostcache/internal/tools"
	web "github.com/leonardcser/hostcache/internal/web"
)

const daemonBinary = "hostcached"

func main() {
	if err := logger.InitFromEnv("web-mcp"); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting Web MCP server")

	cfg, err := config.Load(os.Getenv("HOSTCACHE_CONFIG"))
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		panic(err)
	}
	logger.SetLevelFromString(cfg.LogLevel)

	cacheDriver, err := openDriver(cfg)
	if err != nil {
		logger.Errorf("Cache unavailable: %v", err)
		panic(err)
	}
	logger.Infof("Connected to cache daemon at %s", cfg.Socket)

	var d driver.Driver = cacheDriver
	if cfg.LogLevel == "debug" {
		d = driver.NewDebug(cacheDriver)
	}

	fetcher := web.NewFetcher(d, 15*time.Minute)
	searcher := web.NewSearcher(d, 5*time.Minute)
	logger.Infof("Initialized web fetcher and searcher (namespace %s, max ttl %ds)", cacheDriver.Namespace(), cacheDriver.MaxTTL())

	s := server.NewMCPServer(
		"Web MCP",
		"0.2.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)

	toolFetch := mcp.NewTool("web-fetch",
		mcp.WithDescription(multiline(
			"Fetches content from a specified URL and returns the parsed content",
			"\nFunctionality:",
			"- Takes a URL as input",
			"- Fetches the URL content and parses it",
			"- Returns the structured content including title, description, text, and links",
			"\nUsage notes:",
			"- The URL must be a fully-formed valid URL",
			"- This tool is read-only and does not modify any files",
			"- Responses are cached per host in a shared, self-cleaning cache; use cache-clear to force a refetch",
		)),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch content from")),
	)
	s.AddTool(toolFetch, tools.WebFetchHandler(fetcher))

	toolSearch := mcp.NewTool("web-search",
		mcp.WithDescription(multiline(
			"Allows you to search the web and use the results to inform responses",
			"\nFunctionality:",
			"- Provides up-to-date information for current events and recent data",
			"- Returns search result information formatted as search result blocks",
			"\nUsage notes:",
			"- Results for identical queries are cached for a few minutes",
		)),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query to use")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results, 1-20 (default 10)")),
	)
	s.AddTool(toolSearch, tools.WebSearchHandler(searcher))

	toolClear := mcp.NewTool("cache-clear",
		mcp.WithDescription(multiline(
			"Drops cached web results so the next fetch or search goes to the network",
			"\nUsage notes:",
			"- Pass a host to drop only pages fetched from that host",
			"- Without a host every cached fetch and search result is dropped",
		)),
		mcp.WithString("host", mcp.Description("Host whose cached pages should be dropped, e.g. example.com")),
	)
	s.AddTool(toolClear, tools.CacheClearHandler(d))
	logger.Infof("Registered web-fetch, web-search and cache-clear tools")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

// openDriver connects to the cache daemon, starting it first if nothing is
// listening yet.
func openDriver(cfg *config.Config) (*driver.Host, error) {
	ns, err := cfg.ResolveNamespace()
	if err != nil {
		return nil, err
	}
	env := driver.Environment{Socket: cfg.Socket}
	opts := driver.Options{TTL: cfg.TTL, Namespace: ns}

	if info := driver.ProbeHost(env); !info.Available {
		logger.Warnf("Cache daemon not available (%s), attempting to start it", info.Reason)
		if err := startCacheDaemon(); err != nil {
			logger.Errorf("Failed to start cache daemon: %v", err)
		}
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) && !driver.HostAvailable(env) {
			time.Sleep(200 * time.Millisecond)
		}
	}
	return driver.OpenHost(env, opts)
}

func startCacheDaemon() error {
	candidates := []string{}
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), daemonBinary))
	}
	if path, err := exec.LookPath(daemonBinary); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./"+daemonBinary)

	for _, bin := range candidates {
		if _, err := os.Stat(bin); err != nil {
			continue
		}
		cmd := exec.Command(bin)
		cmd.Env = os.Environ()
		return cmd.Start()
	}
	return errors.New(daemonBinary + ": " + exec.ErrNotFound.Error())
}
