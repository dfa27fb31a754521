// Package toolregistry implements MCP tool discovery, catalog sync,
// and per-tool enable/disable (C8), against the real
// github.com/modelcontextprotocol/go-sdk client.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/corewire/assistant-core/internal/cryptutil"
	"github.com/corewire/assistant-core/internal/store"
	"github.com/corewire/assistant-core/pkg/apperr"
	"github.com/corewire/assistant-core/pkg/models"
)

// forbiddenHeaders are hop-by-hop headers stripped from user-supplied
// MCP transport headers before they reach the HTTP client (§4.8).
var forbiddenHeaders = map[string]struct{}{
	"host":             {},
	"connection":       {},
	"transfer-encoding": {},
	"content-length":   {},
	"keep-alive":       {},
	"upgrade":          {},
	"proxy-connection": {},
}

// connectionConfig is the shape decoded from a generic-MCP connector's
// decrypted credential blob.
type connectionConfig struct {
	Transport string            `json:"transport"` // "http", "sse", or "stdio"
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
}

// Service implements MCP connector tool discovery/sync.
type Service struct {
	store  store.Store
	crypto *cryptutil.Box
	client *mcpsdk.Client
}

func New(s store.Store, crypto *cryptutil.Box) *Service {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "assistant-core", Version: "1"}, nil)
	return &Service{store: s, crypto: crypto, client: client}
}

// Sync connects to the connector's MCP server, lists its tools, and
// atomically replaces the connector's persisted tool catalog. Status
// is set to Connected on success or Failed on any error.
func (s *Service) Sync(ctx context.Context, connector *models.Connector) error {
	cfg, err := s.decodeConfig(connector)
	if err != nil {
		s.markFailed(ctx, connector.ExternalID)
		return err
	}

	transport, err := buildTransport(ctx, cfg)
	if err != nil {
		s.markFailed(ctx, connector.ExternalID)
		return err
	}

	session, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		s.markFailed(ctx, connector.ExternalID)
		return fmt.Errorf("toolregistry: connect: %w", err)
	}
	defer session.Close()

	var tools []models.Tool
	for mcpTool, err := range session.Tools(ctx, nil) {
		if err != nil {
			s.markFailed(ctx, connector.ExternalID)
			return fmt.Errorf("toolregistry: list tools: %w", err)
		}
		schemaJSON, err := json.Marshal(mcpTool.InputSchema)
		if err != nil {
			s.markFailed(ctx, connector.ExternalID)
			return fmt.Errorf("toolregistry: marshal schema for %q: %w", mcpTool.Name, err)
		}
		if err := validateSchema(schemaJSON); err != nil {
			s.markFailed(ctx, connector.ExternalID)
			return fmt.Errorf("toolregistry: invalid schema for tool %q: %w", mcpTool.Name, err)
		}
		tools = append(tools, models.Tool{
			WorkspaceID: connector.WorkspaceID,
			ConnectorID: connector.ExternalID,
			Name:        mcpTool.Name,
			Description: mcpTool.Description,
			Schema:      string(schemaJSON),
			Enabled:     false,
		})
	}

	if err := s.store.SyncConnectorTools(ctx, connector.WorkspaceID, connector.ExternalID, tools); err != nil {
		s.markFailed(ctx, connector.ExternalID)
		return fmt.Errorf("toolregistry: sync catalog: %w", err)
	}

	return s.store.UpdateConnectorStatus(ctx, connector.ExternalID, models.ConnectorConnected)
}

func (s *Service) markFailed(ctx context.Context, externalID string) {
	_ = s.store.UpdateConnectorStatus(ctx, externalID, models.ConnectorFailed)
}

func (s *Service) decodeConfig(connector *models.Connector) (*connectionConfig, error) {
	raw, err := s.crypto.Decrypt(connector.EncryptedCreds)
	if err != nil {
		return nil, fmt.Errorf("toolregistry: decrypt connection config: %w", err)
	}
	var cfg connectionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("toolregistry: decode connection config: %w", err)
	}
	return &cfg, nil
}

// buildTransport constructs the MCP client transport named by cfg.
// HTTP-mode headers are sanitized: forbidden hop-by-hop headers are
// dropped and keys lower-cased before being attached to every request.
func buildTransport(ctx context.Context, cfg *connectionConfig) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case "http", "sse", "streamable-http":
		if cfg.URL == "" {
			return nil, apperr.New(models.ErrInvalidModel, "MCP http transport requires a non-empty url")
		}
		headers := sanitizeHeaders(cfg.Headers)
		httpClient := &http.Client{Transport: &headerInjectingTransport{headers: headers, base: http.DefaultTransport}}
		return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}, nil
	case "stdio":
		if cfg.Command == "" {
			return nil, apperr.New(models.ErrInvalidModel, "MCP stdio transport requires a non-empty command")
		}
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	default:
		return nil, apperr.New(models.ErrInvalidModel, fmt.Sprintf("unsupported MCP transport: %q", cfg.Transport))
	}
}

// sanitizeHeaders drops forbidden hop-by-hop headers and lower-cases
// the remaining keys.
func sanitizeHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		lower := strings.ToLower(k)
		if _, forbidden := forbiddenHeaders[lower]; forbidden {
			continue
		}
		out[lower] = v
	}
	return out
}

type headerInjectingTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerInjectingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	clone := r.Clone(r.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}

// validateSchema compiles a tool's JSON schema, surfacing malformed
// schemas before a tool is ever persisted/enabled.
func validateSchema(schemaJSON []byte) error {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return fmt.Errorf("add resource: %w", err)
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	return nil
}

// ToolUpdate is one row of a partial-success enable/disable batch.
type ToolUpdate struct {
	ConnectorID string
	Name        string
	Enabled     bool
}

// ToolUpdateResult reports the outcome of one ToolUpdate row.
type ToolUpdateResult struct {
	ConnectorID string
	Name        string
	Err         error
}

// UpdateToolsStatus mutates enable flags with a per-row transaction;
// per-tool failures are collected and the operation reports a
// partial-success shape rather than aborting the batch.
func (s *Service) UpdateToolsStatus(ctx context.Context, workspaceID string, updates []ToolUpdate) ([]ToolUpdateResult, error) {
	results := make([]ToolUpdateResult, 0, len(updates))
	failures := 0
	for _, u := range updates {
		err := s.store.SetToolEnabled(ctx, workspaceID, u.ConnectorID, u.Name, u.Enabled)
		if err != nil {
			failures++
		}
		results = append(results, ToolUpdateResult{ConnectorID: u.ConnectorID, Name: u.Name, Err: err})
	}
	if failures > 0 {
		return results, apperr.New(models.ErrPartialToolUpdate, fmt.Sprintf("%d of %d tool updates failed", failures, len(updates)))
	}
	return results, nil
}

// InvokeTool calls a remote tool on the connector's MCP server and
// returns its concatenated text content. Callers (the agentic
// pipeline, C5) are responsible for checking the tool is enabled
// before invoking it (store.ListEnabledTools).
func (s *Service) InvokeTool(ctx context.Context, connector *models.Connector, name string, args map[string]any) (string, error) {
	cfg, err := s.decodeConfig(connector)
	if err != nil {
		return "", err
	}
	transport, err := buildTransport(ctx, cfg)
	if err != nil {
		return "", err
	}
	session, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		return "", fmt.Errorf("toolregistry: connect: %w", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("toolregistry: call tool %q: %w", name, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return sb.String(), apperr.New(models.ErrToolNotFound, fmt.Sprintf("tool %q reported an error result", name))
	}
	return sb.String(), nil
}
