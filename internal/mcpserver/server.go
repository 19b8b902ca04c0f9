// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Insighthink content tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/insighthink/internal/apperr"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/ingest"
)

const contentFormatURI = "insighthink://content-format"

// Server wraps the MCP server with Insighthink tools.
type Server struct {
	mcp       *server.MCPServer
	resources map[string]content.Resource
	fetch     func(ctx context.Context, field, source string) (*ingest.File, error)
}

// New creates a new MCP server with all content tools registered.
func New(resources map[string]content.Resource) *Server {
	s := &Server{resources: resources, fetch: loadAsset}

	s.mcp = server.NewMCPServer(
		"Insighthink",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	collections := mcp.Description("Collection: " + strings.Join(s.collections(), ", "))

	s.mcp.AddTool(mcp.NewTool("list_content",
		mcp.WithDescription("List documents of a collection, newest first."),
		mcp.WithString("collection", mcp.Required(), collections),
		mcp.WithNumber("page", mcp.Description("Page number, from 1")),
		mcp.WithNumber("limit", mcp.Description("Page size, at most 100")),
		mcp.WithString("query", mcp.Description("Optional title search")),
		mcp.WithString("tag", mcp.Description("Optional tag or genre filter")),
	), s.listContent)

	s.mcp.AddTool(mcp.NewTool("get_content",
		mcp.WithDescription("Read one document by id."),
		mcp.WithString("collection", mcp.Required(), collections),
		mcp.WithString("id", mcp.Required(), mcp.Description("24 hex character document id")),
	), s.getContent)

	s.mcp.AddTool(mcp.NewTool("create_content",
		mcp.WithDescription("Create a document. Fields MUST follow the content format; "+
			"read it first via the "+contentFormatURI+" resource."),
		mcp.WithString("collection", mcp.Required(), collections),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Document fields as a flat JSON object")),
		mcp.WithObject("assets", mcp.Description("Optional images: asset field to data URI or http(s) URL")),
	), s.createContent)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Upload an image into an asset field of an existing document, "+
			"replacing the previous one."),
		mcp.WithString("collection", mcp.Required(), collections),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Asset field, e.g. coverImage or thumbnail")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Base64 data URI or http(s) URL")),
	), s.attachImage)

	s.mcp.AddResource(
		mcp.NewResource(contentFormatURI, "Content Format",
			mcp.WithResourceDescription("Collections, fields and image rules for documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) collections() []string {
	out := make([]string, 0, len(s.resources))
	for name := range s.resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Server) resource(req mcp.CallToolRequest) (content.Resource, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return nil, err
	}
	res, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q (known: %s)", name, strings.Join(s.collections(), ", "))
	}
	return res, nil
}

func (s *Server) listContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.resource(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := res.List(ctx, content.ListQuery{
		Page:   req.GetInt("page", 1),
		Limit:  req.GetInt("limit", 10),
		Search: req.GetString("query", ""),
		Tag:    req.GetString("tag", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(page), nil
}

func (s *Server) getContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.resource(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := res.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) createContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.resource(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	fields, ok := args["fields"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("fields must be a JSON object"), nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in, err := ingest.DecodeJSON(bytes.NewReader(raw), res.FileFields()...)
	if err != nil {
		return toolError(err), nil
	}

	assets, _ := args["assets"].(map[string]any)
	for field, v := range assets {
		source, ok := v.(string)
		if !ok || !isAssetField(res, field) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid asset %q", field)), nil
		}
		f, err := s.fetch(ctx, field, source)
		if err != nil {
			return toolError(err), nil
		}
		in.Files[field] = f
	}

	doc, err := res.Create(ctx, in, nil)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) attachImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.resource(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !isAssetField(res, field) {
		return mcp.NewToolResultError(fmt.Sprintf("%s has no asset field %q (asset fields: %s)",
			res.Collection(), field, strings.Join(res.FileFields(), ", "))), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	f, err := s.fetch(ctx, field, source)
	if err != nil {
		return toolError(err), nil
	}
	doc, err := res.Update(ctx, id, &ingest.Request{
		Fields: ingest.Fields{},
		Files:  map[string]*ingest.File{field: f},
	}, nil)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) readContentFormat(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contentFormatURI,
			MIMEType: "text/markdown",
			Text:     ContentFormat,
		},
	}, nil
}

func isAssetField(res content.Resource, field string) bool {
	return slices.Contains(res.FileFields(), field)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// toolError reports err to the model without exposing storage internals.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrStorage) {
		slog.Error("mcp tool failed", slog.String("error", err.Error()))
	}
	return mcp.NewToolResultError(apperr.Message(err))
}
