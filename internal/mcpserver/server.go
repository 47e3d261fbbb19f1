// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes record tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/siena/internal/events"
	"github.com/starford/siena/internal/parser"
	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/recordservice"
)

// RecordFormatURI is the resource holding RecordFormatContract.
const RecordFormatURI = "siena://record-format"

// Server wraps the MCP server with record tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates a new MCP server with all record tools registered.
func New(svc *recordservice.Service, name string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		name,
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("Query the records of a collection with optional filters, sort and pagination. "+
			"Returns the selected records and the number of matches before pagination."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection (directory) name")),
		mcp.WithString("filters", mcp.Description(`JSON array of filters, e.g. [{"op":"is","key":"status","value":"published"}]`)),
		mcp.WithString("sort", mcp.Description("Key to sort by")),
		mcp.WithString("order", mcp.Description("asc (default) or desc")),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
		mcp.WithNumber("page_size", mcp.Description("Records per page (default 20)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records")),
		mcp.WithNumber("offset", mcp.Description("Number of records to skip")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read a single record by collection and id."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id (file name without extension)")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("set_records",
		mcp.WithDescription("Merge fields into every record of a collection that matches the filters, "+
			"and write them back. Read the format first via get_record_format."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("fields", mcp.Required(), mcp.Description(`JSON object of fields to set, e.g. {"status":"published"}`)),
		mcp.WithString("filters", mcp.Description("JSON array of filters selecting the records")),
	), s.setRecords)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a new YAML record. A :id token in the id is replaced by a UUID. "+
			"Fails if the record already exists."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("New record id")),
		mcp.WithString("fields", mcp.Description("JSON object of initial fields")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("delete_records",
		mcp.WithDescription("Delete every record of a collection that matches the filters."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("filters", mcp.Description("JSON array of filters selecting the records")),
	), s.deleteRecords)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Substring search over record ids and fields. Requires the SQLite index."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("collection", mcp.Description("Restrict to one collection")),
		mcp.WithNumber("limit", mcp.Description("Maximum hits (default 20)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("get_record_format",
		mcp.WithDescription("Returns the record storage format, field types and filter syntax. "+
			"Call this before setting or creating records."),
	), s.getRecordFormat)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource(RecordFormatURI, "Record Format",
			mcp.WithResourceDescription("How records, fields and filters are encoded."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// Serve runs the MCP protocol over in and out until ctx is cancelled or in
// is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// ChangeNotification is the method of the notification sent for each
// record change.
const ChangeNotification = "notifications/siena/changed"

// Forward sends every event from ch to all connected clients until ch is
// closed or ctx is done.
func (s *Server) Forward(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			params := map[string]any{
				"type":       ev.Type,
				"collection": ev.Collection,
			}
			if ev.ID != "" {
				params["id"] = ev.ID
			}
			s.mcp.SendNotificationToAllClients(ChangeNotification, params)
		}
	}
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := requestFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q.Sort = req.GetString("sort", "")
	q.Order = req.GetString("order", "")
	q.Page = req.GetInt("page", 0)
	q.PageSize = req.GetInt("page_size", 0)
	q.Limit = req.GetInt("limit", 0)
	q.Offset = req.GetInt("offset", 0)

	res, err := s.svc.Query(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Get(ctx, collection, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", collection, id)), nil
	}
	return jsonResult(rec)
}

func (s *Server) setRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := requestFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("fields")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, err := parseFields(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Set(ctx, q, fields)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %d", n)), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, err := parseFields(req.GetString("fields", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Create(ctx, collection, id, fields)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s/%s", rec.Collection, rec.ID)), nil
}

func (s *Server) deleteRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := requestFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Delete(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", n)), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, req.GetString("collection", ""), q, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) getRecordFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

// requestFrom reads the collection and filters shared by the query tools.
func requestFrom(req mcp.CallToolRequest) (recordservice.Request, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return recordservice.Request{}, err
	}
	q := recordservice.Request{Collection: collection}
	if raw := req.GetString("filters", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Filters); err != nil {
			return recordservice.Request{}, fmt.Errorf("invalid filters: %w", err)
		}
	}
	return q, nil
}

// parseFields decodes a JSON or YAML object into fields ordered by key.
func parseFields(raw string) ([]record.Field, error) {
	if raw == "" {
		return nil, nil
	}
	m, err := parser.ParseMapping([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid fields: %w", err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fields := make([]record.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, record.Set(k, m[k]))
	}
	return fields, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
