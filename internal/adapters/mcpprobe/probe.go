// Package mcpprobe performs a live MCP handshake against a tool server and
// reports the tools it advertises, so users can build an allow-list from
// real names instead of guessing.
package mcpprobe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const defaultProbeTimeout = 30 * time.Second

type Tool struct {
	Name        string
	Description string
}

type Discovery struct {
	ServerName    string
	ServerVersion string
	Tools         []Tool
}

// Transport pins the probe to one MCP transport instead of trying both.
type Transport string

const (
	TransportAuto Transport = ""
	TransportHTTP Transport = "http"
	TransportSSE  Transport = "sse"
)

type Prober struct {
	ClientName    string
	ClientVersion string
	Headers       map[string]string
	Timeout       time.Duration
	Transport     Transport
}

type clientFactory func(serverURL string, headers map[string]string) (mcpclient.MCPClient, error)

// Discover connects over streamable HTTP first and retries over SSE, since
// tool servers in the wild speak one or the other.
func (p Prober) Discover(ctx context.Context, serverURL string) (Discovery, error) {
	if strings.TrimSpace(serverURL) == "" {
		return Discovery{}, errors.New("server url is required")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch p.Transport {
	case TransportHTTP:
		return p.discoverVia(ctx, serverURL, newStreamableClient)
	case TransportSSE:
		return p.discoverVia(ctx, serverURL, newSSEClient)
	case TransportAuto:
	default:
		return Discovery{}, fmt.Errorf("unsupported transport %q", p.Transport)
	}

	discovery, httpErr := p.discoverVia(ctx, serverURL, newStreamableClient)
	if httpErr == nil {
		return discovery, nil
	}
	if errors.Is(httpErr, context.Canceled) || errors.Is(httpErr, context.DeadlineExceeded) {
		return Discovery{}, httpErr
	}

	discovery, sseErr := p.discoverVia(ctx, serverURL, newSSEClient)
	if sseErr == nil {
		return discovery, nil
	}

	return Discovery{}, fmt.Errorf("streamable http: %w; sse: %w", httpErr, sseErr)
}

func (p Prober) discoverVia(ctx context.Context, serverURL string, build clientFactory) (Discovery, error) {
	cl, err := build(serverURL, p.Headers)
	if err != nil {
		return Discovery{}, fmt.Errorf("create mcp client: %w", err)
	}
	defer func() { _ = cl.Close() }()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    p.clientName(),
		Version: p.clientVersion(),
	}

	initResult, err := cl.Initialize(ctx, initReq)
	if err != nil {
		return Discovery{}, fmt.Errorf("initialize: %w", err)
	}

	discovery := Discovery{
		ServerName:    initResult.ServerInfo.Name,
		ServerVersion: initResult.ServerInfo.Version,
	}

	var cursor mcp.Cursor
	for {
		listReq := mcp.ListToolsRequest{}
		listReq.Params.Cursor = cursor

		page, err := cl.ListTools(ctx, listReq)
		if err != nil {
			return Discovery{}, fmt.Errorf("list tools: %w", err)
		}

		for i := range page.Tools {
			discovery.Tools = append(discovery.Tools, Tool{
				Name:        page.Tools[i].Name,
				Description: page.Tools[i].Description,
			})
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return discovery, nil
}

func (p Prober) clientName() string {
	if p.ClientName != "" {
		return p.ClientName
	}
	return "fa"
}

func (p Prober) clientVersion() string {
	if p.ClientVersion != "" {
		return p.ClientVersion
	}
	return "dev"
}

func newStreamableClient(serverURL string, headers map[string]string) (mcpclient.MCPClient, error) {
	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}
	return mcpclient.NewStreamableHttpClient(serverURL, opts...)
}

func newSSEClient(serverURL string, headers map[string]string) (mcpclient.MCPClient, error) {
	var opts []transport.ClientOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHeaders(headers))
	}
	return mcpclient.NewSSEMCPClient(serverURL, opts...)
}
