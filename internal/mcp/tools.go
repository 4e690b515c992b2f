package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Argument schemas mirror the ops input structs;
// binary fields (inline, bytes) travel base64-encoded per JSON rules.

var capsuleCreateToolDef = mcp.NewTool("capsule_create",
	mcp.WithDescription("Create a capsule for a subject. Omit subject to create (or return) the caller's own capsule."),
	mcp.WithString("subject", mcp.Description("Identity the capsule preserves memories for; defaults to the caller")),
)

var capsuleFetchToolDef = mcp.NewTool("capsule_fetch",
	mcp.WithDescription("Fetch a capsule's full record, including membership and memory index."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ID")),
)

var capsuleListToolDef = mcp.NewTool("capsule_list",
	mcp.WithDescription("List capsules visible to the caller, newest first, with cursor pagination."),
	mcp.WithString("cursor", mcp.Description("Opaque cursor from a previous page")),
	mcp.WithNumber("limit", mcp.Description("Maximum items to return (default 20, max 100)")),
)

var capsuleUpdateToolDef = mcp.NewTool("capsule_update",
	mcp.WithDescription("Update capsule membership: controllers (owners only), connections, connection groups."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithArray("controllers", mcp.Description("Replacement controller identity list (owners only)")),
	mcp.WithArray("connections", mcp.Description("Replacement connection list")),
	mcp.WithArray("connection_groups", mcp.Description("Replacement connection group list")),
)

var capsuleDeleteToolDef = mcp.NewTool("capsule_delete",
	mcp.WithDescription("Delete a capsule and reclaim its storage. Fails if internal assets remain unless force is set."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithBoolean("force", mcp.Description("Delete even if memories still hold internal assets")),
)

var memoryCreateToolDef = mcp.NewTool("memory_create",
	mcp.WithDescription("Create a memory in a capsule with exactly one content source: inline bytes, a finished upload's blob_ref, or an external reference."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("kind", mcp.Required(), mcp.Description("Memory kind: image|video|audio|document|note")),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithString("content_type", mcp.Description("MIME type of the original asset")),
	mcp.WithNumber("date_of_memory", mcp.Description("Unix timestamp the memory depicts")),
	mcp.WithArray("tags", mcp.Description("Free-form tags")),
	mcp.WithString("inline", mcp.Description("Base64-encoded inline content")),
	mcp.WithObject("blob_ref", mcp.Description("Reference returned by upload_finish")),
	mcp.WithObject("external", mcp.Description("External asset reference (backend, location, size, hash)")),
	mcp.WithNumber("external_size", mcp.Description("Declared size of the external asset; must match external.size")),
	mcp.WithObject("access", mcp.Description("Access policy; defaults to private with a generated secure code")),
	mcp.WithString("idempotency_key", mcp.Description("Dedupe key; repeat calls return the original memory")),
	mcp.WithString("parent_folder_id", mcp.Description("Optional folder grouping")),
)

var memoryFetchToolDef = mcp.NewTool("memory_fetch",
	mcp.WithDescription("Fetch a memory the caller can access. Denied or missing memories both report not found."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("memory_id", mcp.Required(), mcp.Description("Memory ID")),
	mcp.WithString("secure_code", mcp.Description("Owner secure code bypass")),
	mcp.WithBoolean("include_inline", mcp.Description("Include inline asset bytes (default true)")),
)

var memoryUpdateToolDef = mcp.NewTool("memory_update",
	mcp.WithDescription("Update a memory's descriptive fields or access policy. Only provided fields change."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("memory_id", mcp.Required(), mcp.Description("Memory ID")),
	mcp.WithString("name", mcp.Description("New display name")),
	mcp.WithString("content_type", mcp.Description("New MIME type")),
	mcp.WithNumber("date_of_memory", mcp.Description("New unix timestamp the memory depicts")),
	mcp.WithArray("tags", mcp.Description("Replacement tag list")),
	mcp.WithObject("access", mcp.Description("Replacement access policy")),
	mcp.WithString("parent_folder_id", mcp.Description("New folder grouping")),
	mcp.WithString("processing", mcp.Description("Processing status: pending|complete|failed")),
	mcp.WithString("processing_error", mcp.Description("Processing failure detail")),
)

var memoryDeleteToolDef = mcp.NewTool("memory_delete",
	mcp.WithDescription("Delete a memory. Deleting a missing memory reports not found, never silent success."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("memory_id", mcp.Required(), mcp.Description("Memory ID")),
	mcp.WithBoolean("delete_assets", mcp.Description("Also reclaim internal blob storage")),
)

var memoryListToolDef = mcp.NewTool("memory_list",
	mcp.WithDescription("List memories in a capsule the caller can currently access, with cursor pagination."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("cursor", mcp.Description("Opaque cursor from a previous page")),
	mcp.WithNumber("limit", mcp.Description("Maximum items to return (default 20, max 100)")),
	mcp.WithString("kind", mcp.Description("Filter by memory kind")),
)

var memoryBulkDeleteToolDef = mcp.NewTool("memory_bulk_delete",
	mcp.WithDescription("Delete several memories, reporting per-item success and failure."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithArray("memory_ids", mcp.Required(), mcp.Description("Memory IDs to delete")),
	mcp.WithBoolean("delete_assets", mcp.Description("Also reclaim internal blob storage")),
)

var memoryDeleteAllToolDef = mcp.NewTool("memory_delete_all",
	mcp.WithDescription("Atomically wipe every memory in a capsule, preserving the capsule record."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
)

var memoryExportToolDef = mcp.NewTool("memory_export",
	mcp.WithDescription("Render a note memory's markdown to an HTML file in the exports directory."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("memory_id", mcp.Required(), mcp.Description("Memory ID")),
	mcp.WithString("secure_code", mcp.Description("Owner secure code bypass")),
)

var eventMarkToolDef = mcp.NewTool("event_mark",
	mcp.WithDescription("Mark a named event as fired for a capsule, revealing event-triggered memories."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID")),
	mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
)

var uploadBeginToolDef = mcp.NewTool("upload_begin",
	mcp.WithDescription("Begin a chunked upload session targeting a capsule."),
	mcp.WithString("capsule_id", mcp.Required(), mcp.Description("Capsule ID the upload will attach to")),
	mcp.WithObject("asset_metadata", mcp.Description("Declared shape of the asset (name, content_type, size)")),
	mcp.WithNumber("expected_chunk_count", mcp.Required(), mcp.Description("Number of chunks the client will send")),
	mcp.WithString("idempotency_key", mcp.Description("Dedupe key; repeat calls return the existing session")),
)

var uploadPutChunkToolDef = mcp.NewTool("upload_put_chunk",
	mcp.WithDescription("Upload one chunk. Resending an index overwrites the previous bytes."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Upload session ID")),
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based chunk index")),
	mcp.WithString("bytes", mcp.Required(), mcp.Description("Base64-encoded chunk content")),
)

var uploadFinishToolDef = mcp.NewTool("upload_finish",
	mcp.WithDescription("Assemble all chunks, verify the content hash, and commit the result to blob storage."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Upload session ID")),
	mcp.WithString("expected_hash", mcp.Required(), mcp.Description("Hex BLAKE3 hash of the assembled content")),
	mcp.WithNumber("expected_size", mcp.Description("Total byte size of the assembled content")),
)

var uploadAbortToolDef = mcp.NewTool("upload_abort",
	mcp.WithDescription("Abort an upload session and discard its chunks. Aborting an unknown session succeeds."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Upload session ID")),
)
