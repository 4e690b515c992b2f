package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/upload"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"capsule_create": {
		def:     capsuleCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapsuleCreate },
	},
	"capsule_fetch": {
		def:     capsuleFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapsuleFetch },
	},
	"capsule_list": {
		def:     capsuleListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapsuleList },
	},
	"capsule_update": {
		def:     capsuleUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapsuleUpdate },
	},
	"capsule_delete": {
		def:     capsuleDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapsuleDelete },
	},
	"memory_create": {
		def:     memoryCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryCreate },
	},
	"memory_fetch": {
		def:     memoryFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryFetch },
	},
	"memory_update": {
		def:     memoryUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryUpdate },
	},
	"memory_delete": {
		def:     memoryDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryDelete },
	},
	"memory_list": {
		def:     memoryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryList },
	},
	"memory_bulk_delete": {
		def:     memoryBulkDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryBulkDelete },
	},
	"memory_delete_all": {
		def:     memoryDeleteAllToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryDeleteAll },
	},
	"memory_export": {
		def:     memoryExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryExport },
	},
	"event_mark": {
		def:     eventMarkToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventMark },
	},
	"upload_begin": {
		def:     uploadBeginToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadBegin },
	},
	"upload_put_chunk": {
		def:     uploadPutChunkToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadPutChunk },
	},
	"upload_finish": {
		def:     uploadFinishToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadFinish },
	},
	"upload_abort": {
		def:     uploadAbortToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUploadAbort },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps bundles everything the server's handlers need.
type Deps struct {
	Env        env.Env
	Store      store.Store
	Blobs      blob.Store
	Uploads    *upload.Manager
	Config     *config.Config
	ExportsDir string
}

// NewServer creates a new MCP server with Vessel tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vessel",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps.Env, deps.Store, deps.Blobs, deps.Uploads, deps.Config, deps.ExportsDir)

	disabled := make(map[string]bool)
	for _, name := range deps.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
