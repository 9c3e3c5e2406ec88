package server

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/reportedit/editor"
	"github.com/hazyhaar/reportedit/kit"
	"github.com/hazyhaar/reportedit/theme"
)

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func noArgs(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{}, nil
}

var opSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"op": map[string]any{"type": "string", "enum": []any{
			"add_row", "remove_row", "add_dataset", "remove_dataset", "set_label",
			"set_value", "set_dataset_label", "set_color", "set_type", "set_title",
		}},
		"row":     map[string]any{"type": "integer", "description": "Label index"},
		"dataset": map[string]any{"type": "integer", "description": "Dataset index"},
		"value":   map[string]any{"type": "number"},
		"text":    map[string]any{"type": "string", "description": "Label, color, type or title"},
	},
	"required": []any{"op"},
}

// RegisterMCP registers the reportedit tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_load_document",
		Description: "Load a self-contained HTML report into the editor sandbox. Any edit session is abandoned.",
		InputSchema: inputSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "Report name, used for the download file name"},
			"html": map[string]any{"type": "string", "description": "Complete HTML document"},
		}, []string{"html"}),
	}, s.op("load", s.loadEndpoint), kit.DecodeArgs[loadRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_enable_edit",
		Description: "Enter edit mode: the body becomes editable, charts clickable and sections draggable.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.op("enable", s.enableEndpoint), noArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_save",
		Description: "Extract the edited document with current chart data, make it the saved copy and leave edit mode.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.op("save", s.saveEndpoint), noArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_cancel",
		Description: "Discard live edits and reload the last saved document.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.op("cancel", s.cancelEndpoint), noArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_list_charts",
		Description: "List the charts of the loaded document with their labels and dataset values.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.op("list_charts", s.listChartsEndpoint), noArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_edit_chart",
		Description: "Apply data edits to one chart, in order. Requires edit mode.",
		InputSchema: inputSchema(map[string]any{
			"id":  map[string]any{"type": "string", "description": "Chart id from reportedit_list_charts"},
			"ops": map[string]any{"type": "array", "items": opSchema},
		}, []string{"id", "ops"}),
	}, s.op("chart_ops", s.chartOpsEndpoint), kit.DecodeArgs[chartOpsRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_list_sections",
		Description: "List the top-level sections of the loaded document in order.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.op("list_sections", s.listSectionsEndpoint), noArgs)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_move_section",
		Description: "Drop section 'from' onto section 'to'. Moving down places it after the target, moving up before. Requires edit mode.",
		InputSchema: inputSchema(map[string]any{
			"from": map[string]any{"type": "integer"},
			"to":   map[string]any{"type": "integer"},
		}, []string{"from", "to"}),
	}, s.op("move_section", s.moveSectionEndpoint), kit.DecodeArgs[moveRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_format",
		Description: "Format the current text selection. Does nothing without a selection.",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{"type": "string", "enum": []any{editor.FormatBold, editor.FormatItalic, editor.FormatFontSize, editor.FormatColor}},
			"size":   map[string]any{"type": "integer", "description": "Font size in px (8-72)"},
			"color":  map[string]any{"type": "string", "description": "CSS color"},
		}, []string{"action"}),
	}, s.op("format", s.formatEndpoint), kit.DecodeArgs[editor.FormatRequest])

	fonts := make([]any, 0, len(theme.Fonts))
	for _, f := range theme.Fonts {
		fonts = append(fonts, f.Value)
	}
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reportedit_theme",
		Description: "Override the report font, background or accent color. Empty fields are left alone. Requires edit mode.",
		InputSchema: inputSchema(map[string]any{
			"font_family": map[string]any{"type": "string", "description": "CSS font-family", "examples": fonts},
			"background":  map[string]any{"type": "string", "description": "CSS color"},
			"accent":      map[string]any{"type": "string", "description": "Hex color (#rgb or #rrggbb)"},
		}, nil),
	}, s.op("theme", s.themeEndpoint), kit.DecodeArgs[theme.Overrides])

	if s.cfg.Reports != nil {
		kit.RegisterMCPTool(srv, &mcp.Tool{
			Name:        "reportedit_report_charts",
			Description: "Read the chart data of a published report.",
			InputSchema: inputSchema(map[string]any{
				"id": map[string]any{"type": "string", "description": "Report id"},
			}, []string{"id"}),
		}, s.op("report_charts", s.reportChartsEndpoint), kit.DecodeArgs[reportRequest])
	}
}

// MountMCP registers the tools on srv and serves it over streamable HTTP
// at /mcp.
func (s *Server) MountMCP(srv *mcp.Server) {
	s.RegisterMCP(srv)
	s.router.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
}
