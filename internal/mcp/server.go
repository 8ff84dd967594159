// Package mcp provides a Model Context Protocol server for lognexus.
//
// It exposes the notes parser, the incident store and the prefill/organize
// merges as MCP tools, and store statistics as an MCP resource. Served over
// stdio for desktop MCP clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sbomarketplace/log-nexus-sub000/internal/aiorganize"
	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
	"github.com/sbomarketplace/log-nexus-sub000/internal/prefill"
	"github.com/sbomarketplace/log-nexus-sub000/internal/store"
)

// maxListLimit caps incident_list.
const maxListLimit = 200

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store     store.Store
	Engine    *prefill.Engine      // defaults to prefill.NewEngine()
	Organizer *aiorganize.Organizer // optional, enables ai=true on incident_organize
	Version   string               // version string for MCP server info
	Logger    *zap.Logger
}

// dbMu serializes all MCP tool calls that touch the database.
// mcp-go dispatches handlers concurrently and SQLite allows one writer.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all lognexus tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	if cfg.Engine == nil {
		cfg.Engine = prefill.NewEngine()
	}
	if cfg.Organizer == nil {
		cfg.Organizer = aiorganize.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"lognexus",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	// Parser tools never touch the store.
	registerParseTool(s)
	registerQuickScanTool(s)
	registerCaseNumberTool(s)

	registerAddTool(s, cfg.Store)
	registerGetTool(s, cfg.Store)
	registerListTool(s, cfg.Store)
	registerPrefillTool(s, cfg.Store, cfg.Engine)
	registerOrganizeTool(s, cfg.Store, cfg.Engine, cfg.Organizer, cfg.Logger)

	registerStatsResource(s, cfg.Store)

	return s
}

// ServeStdio runs srv on stdin/stdout until the client disconnects.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

// --- Parser tools ---

func registerParseTool(s *server.MCPServer) {
	tool := mcp.NewTool("incident_parse",
		mcp.WithDescription("Parse free-form incident notes into structured fields: date, time, location, people, witnesses, quotes, requests, category, summary and case number. Fields that were not detected are omitted."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The notes to parse"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		return jsonResult(notes.ParseNotesToStructured(text))
	})
}

func registerQuickScanTool(s *server.MCPServer) {
	tool := mcp.NewTool("incident_quick_scan",
		mcp.WithDescription("Fast scan of notes for just the case number and time of day."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The notes to scan"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		return jsonResult(notes.QuickScan(text))
	})
}

func registerCaseNumberTool(s *server.MCPServer) {
	tool := mcp.NewTool("incident_case_number",
		mcp.WithDescription("Find a case, ticket, report or reference number in text. Returns an empty caseNumber when none is present."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text that may contain a case number"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		return jsonResult(map[string]string{"caseNumber": notes.ExtractCaseNumberFlexible(text)})
	})
}

// --- Store tools ---

func registerAddTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("incident_add",
		mcp.WithDescription("Log a new incident. At least one of what or notes is required. Set prefill=true to fill empty fields from the notes right away."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("what", mcp.Description("Short description of what happened")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
		mcp.WithString("who", mcp.Description("Comma-separated people involved")),
		mcp.WithString("where", mcp.Description("Location")),
		mcp.WithString("witnesses", mcp.Description("Comma-separated witnesses")),
		mcp.WithString("category", mcp.Description("Category or issue")),
		mcp.WithString("case_number", mcp.Description("Case, ticket or claim number")),
		mcp.WithString("date", mcp.Description("Date, YYYY-MM-DD")),
		mcp.WithString("time", mcp.Description("Time, HH:mm 24-hour")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		inc := &incident.Incident{
			What:            strings.TrimSpace(req.GetString("what", "")),
			Notes:           strings.TrimSpace(req.GetString("notes", "")),
			Who:             strings.TrimSpace(req.GetString("who", "")),
			Where:           strings.TrimSpace(req.GetString("where", "")),
			Witnesses:       strings.TrimSpace(req.GetString("witnesses", "")),
			CategoryOrIssue: strings.TrimSpace(req.GetString("category", "")),
			CaseNumber:      strings.TrimSpace(req.GetString("case_number", "")),
		}
		if inc.What == "" && inc.Notes == "" {
			return mcp.NewToolResultError("what or notes is required"), nil
		}

		if date := req.GetString("date", ""); date != "" {
			if inc.DatePart = notes.ExtractDate(date); inc.DatePart == "" {
				return mcp.NewToolResultError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)), nil
			}
		}
		if clock := req.GetString("time", ""); clock != "" {
			if inc.TimePart = notes.ExtractTime(clock); inc.TimePart == "" {
				return mcp.NewToolResultError(fmt.Sprintf("invalid time %q, expected HH:mm", clock)), nil
			}
		}

		if err := st.Save(ctx, inc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("saving incident: %v", err)), nil
		}
		return jsonResult(inc)
	})
}

func registerGetTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("incident_get",
		mcp.WithDescription("Get one incident by id."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Incident id"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		inc, err := st.GetByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("getting incident: %v", err)), nil
		}
		if inc == nil {
			return mcp.NewToolResultError(fmt.Sprintf("incident %s not found", id)), nil
		}
		return jsonResult(inc)
	})
}

func registerListTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("incident_list",
		mcp.WithDescription("List logged incidents, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 20, max: 200)")),
		mcp.WithNumber("offset", mcp.Description("Results to skip")),
		mcp.WithString("category", mcp.Description("Only incidents with exactly this category")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := int(req.GetFloat("limit", 20))
		if limit <= 0 {
			limit = 20
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		offset := int(req.GetFloat("offset", 0))
		if offset < 0 {
			offset = 0
		}

		incidents, err := st.List(ctx, store.ListOpts{
			Limit:    limit,
			Offset:   offset,
			Category: strings.TrimSpace(req.GetString("category", "")),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing incidents: %v", err)), nil
		}
		if incidents == nil {
			incidents = []*incident.Incident{}
		}
		return jsonResult(map[string]interface{}{
			"incidents": incidents,
			"count":     len(incidents),
		})
	})
}

// mergeResult is the payload of incident_prefill and incident_organize.
type mergeResult struct {
	Incident *incident.Incident `json:"incident"`
	Patch    incident.Patch     `json:"patch"`
	Fields   []string           `json:"fields"`
	DryRun   bool               `json:"dryRun,omitempty"`
	Source   aiorganize.Source  `json:"source,omitempty"`
}

func newMergeResult(inc *incident.Incident, p incident.Patch) mergeResult {
	fields := p.Fields()
	if fields == nil {
		fields = []string{}
	}
	return mergeResult{Incident: inc, Patch: p, Fields: fields}
}

func registerPrefillTool(s *server.MCPServer, st store.Store, engine *prefill.Engine) {
	tool := mcp.NewTool("incident_prefill",
		mcp.WithDescription("Fill an incident's empty fields from its own notes, or from the given text. Never overwrites a field that already has a value. Notes may gain an appended Quotes / Requests block."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Incident id"),
		),
		mcp.WithString("text", mcp.Description("Parse this text instead of the record's notes")),
		mcp.WithBoolean("dry_run", mcp.Description("Return the patch without saving it (default: false)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		text := req.GetString("text", "")
		compute := func(current incident.Incident) (incident.Patch, error) {
			if strings.TrimSpace(text) != "" {
				return engine.PrefillFromText(current, text), nil
			}
			return engine.Prefill(current), nil
		}

		if req.GetBool("dry_run", false) {
			inc, err := st.GetByID(ctx, id)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("getting incident: %v", err)), nil
			}
			if inc == nil {
				return mcp.NewToolResultError(fmt.Sprintf("incident %s not found", id)), nil
			}
			p, _ := compute(*inc)
			res := newMergeResult(inc, p)
			res.DryRun = true
			return jsonResult(res)
		}

		inc, p, err := st.Update(ctx, id, store.EventPrefill, compute)
		if err != nil {
			return storeError("prefilling incident", err), nil
		}
		return jsonResult(newMergeResult(inc, p))
	})
}

func registerOrganizeTool(s *server.MCPServer, st store.Store, engine *prefill.Engine, organizer *aiorganize.Organizer, logger *zap.Logger) {
	tool := mcp.NewTool("incident_organize",
		mcp.WithDescription("Prefill an incident and tidy its voice: requests are rewritten in the second person and an empty description gets a neutral lead sentence. Set ai=true to use the configured LLM, falling back to the local parser."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Incident id"),
		),
		mcp.WithBoolean("ai", mcp.Description("Use the configured LLM provider (default: false)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		snapshot, err := st.GetByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("getting incident: %v", err)), nil
		}
		if snapshot == nil {
			return mcp.NewToolResultError(fmt.Sprintf("incident %s not found", id)), nil
		}

		plan, err := organizer.PlanFor(ctx, *snapshot, req.GetBool("ai", false))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("organizing incident: %v", err)), nil
		}

		inc, p, err := st.Update(ctx, id, store.EventOrganize, func(current incident.Incident) (incident.Patch, error) {
			return plan.Patch(engine, current), nil
		})
		if err != nil {
			return storeError("organizing incident", err), nil
		}
		logger.Debug("incident organized via MCP",
			zap.String("id", id),
			zap.String("source", string(plan.Source)),
			zap.Strings("fields", p.Fields()))

		res := newMergeResult(inc, p)
		res.Source = plan.Source
		return jsonResult(res)
	})
}

// --- Helpers ---

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func storeError(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
}
