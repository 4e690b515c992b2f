package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/ops"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/upload"
	"github.com/hpungsan/vessel/internal/vault"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env        env.Env
	store      store.Store
	blobs      blob.Store
	uploads    *upload.Manager
	cfg        *config.Config
	exportsDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(e env.Env, st store.Store, blobs blob.Store, uploads *upload.Manager, cfg *config.Config, exportsDir string) *Handlers {
	return &Handlers{env: e, store: st, blobs: blobs, uploads: uploads, cfg: cfg, exportsDir: exportsDir}
}

// Request types for each tool

// CapsuleCreateRequest represents the arguments for capsule_create.
type CapsuleCreateRequest struct {
	Subject string `json:"subject,omitempty"`
}

// CapsuleFetchRequest represents the arguments for capsule_fetch.
type CapsuleFetchRequest struct {
	ID string `json:"id"`
}

// CapsuleListRequest represents the arguments for capsule_list.
type CapsuleListRequest struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// CapsuleUpdateRequest represents the arguments for capsule_update.
type CapsuleUpdateRequest struct {
	ID               string                   `json:"id"`
	Controllers      *[]string                `json:"controllers,omitempty"`
	Connections      *[]vault.Connection      `json:"connections,omitempty"`
	ConnectionGroups *[]vault.ConnectionGroup `json:"connection_groups,omitempty"`
}

// CapsuleDeleteRequest represents the arguments for capsule_delete.
type CapsuleDeleteRequest struct {
	ID    string `json:"id"`
	Force bool   `json:"force,omitempty"`
}

// MemoryCreateRequest represents the arguments for memory_create.
type MemoryCreateRequest struct {
	CapsuleID      string              `json:"capsule_id"`
	Kind           string              `json:"kind"`
	Name           string              `json:"name"`
	ContentType    string              `json:"content_type,omitempty"`
	DateOfMemory   *int64              `json:"date_of_memory,omitempty"`
	Tags           []string            `json:"tags,omitempty"`
	Inline         []byte              `json:"inline,omitempty"` // base64 in JSON
	BlobRef        *blob.Ref           `json:"blob_ref,omitempty"`
	External       *vault.ExternalRef  `json:"external,omitempty"`
	ExternalSize   int64               `json:"external_size,omitempty"`
	Access         *vault.MemoryAccess `json:"access,omitempty"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	ParentFolderID string              `json:"parent_folder_id,omitempty"`
}

// MemoryFetchRequest represents the arguments for memory_fetch.
type MemoryFetchRequest struct {
	CapsuleID     string `json:"capsule_id"`
	MemoryID      string `json:"memory_id"`
	SecureCode    string `json:"secure_code,omitempty"`
	IncludeInline *bool  `json:"include_inline,omitempty"`
}

// MemoryUpdateRequest represents the arguments for memory_update.
type MemoryUpdateRequest struct {
	CapsuleID      string              `json:"capsule_id"`
	MemoryID       string              `json:"memory_id"`
	Name           *string             `json:"name,omitempty"`
	ContentType    *string             `json:"content_type,omitempty"`
	DateOfMemory   *int64              `json:"date_of_memory,omitempty"`
	Tags           *[]string           `json:"tags,omitempty"`
	Access         *vault.MemoryAccess `json:"access,omitempty"`
	ParentFolderID *string             `json:"parent_folder_id,omitempty"`

	Processing      *vault.ProcessingStatus `json:"processing,omitempty"`
	ProcessingError *string                 `json:"processing_error,omitempty"`
}

// MemoryDeleteRequest represents the arguments for memory_delete.
type MemoryDeleteRequest struct {
	CapsuleID    string `json:"capsule_id"`
	MemoryID     string `json:"memory_id"`
	DeleteAssets bool   `json:"delete_assets,omitempty"`
}

// MemoryListRequest represents the arguments for memory_list.
type MemoryListRequest struct {
	CapsuleID string `json:"capsule_id"`
	Cursor    string `json:"cursor,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// MemoryBulkDeleteRequest represents the arguments for memory_bulk_delete.
type MemoryBulkDeleteRequest struct {
	CapsuleID    string   `json:"capsule_id"`
	MemoryIDs    []string `json:"memory_ids"`
	DeleteAssets bool     `json:"delete_assets,omitempty"`
}

// MemoryDeleteAllRequest represents the arguments for memory_delete_all.
type MemoryDeleteAllRequest struct {
	CapsuleID string `json:"capsule_id"`
}

// MemoryExportRequest represents the arguments for memory_export.
type MemoryExportRequest struct {
	CapsuleID  string `json:"capsule_id"`
	MemoryID   string `json:"memory_id"`
	SecureCode string `json:"secure_code,omitempty"`
}

// EventMarkRequest represents the arguments for event_mark.
type EventMarkRequest struct {
	CapsuleID string `json:"capsule_id"`
	Event     string `json:"event"`
}

// UploadBeginRequest represents the arguments for upload_begin.
type UploadBeginRequest struct {
	CapsuleID      string           `json:"capsule_id"`
	AssetMetadata  upload.AssetMeta `json:"asset_metadata,omitempty"`
	ExpectedChunks int              `json:"expected_chunk_count"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// UploadPutChunkRequest represents the arguments for upload_put_chunk.
type UploadPutChunkRequest struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	Bytes     []byte `json:"bytes"` // base64 in JSON
}

// UploadFinishRequest represents the arguments for upload_finish.
type UploadFinishRequest struct {
	SessionID    string `json:"session_id"`
	ExpectedHash string `json:"expected_hash"`
	ExpectedSize int64  `json:"expected_size,omitempty"`
}

// UploadAbortRequest represents the arguments for upload_abort.
type UploadAbortRequest struct {
	SessionID string `json:"session_id"`
}

// Handler implementations

// HandleCapsuleCreate handles the capsule_create tool call.
func (h *Handlers) HandleCapsuleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapsuleCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.CreateCapsule(h.env, h.store, ops.CreateCapsuleInput{
		Subject: vault.Identity(input.Subject),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCapsuleFetch handles the capsule_fetch tool call.
func (h *Handlers) HandleCapsuleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapsuleFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.FetchCapsule(h.env, h.store, ops.FetchCapsuleInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCapsuleList handles the capsule_list tool call.
func (h *Handlers) HandleCapsuleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapsuleListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.ListCapsules(h.env, h.store, ops.ListCapsulesInput{
		Cursor: input.Cursor,
		Limit:  input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCapsuleUpdate handles the capsule_update tool call.
func (h *Handlers) HandleCapsuleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapsuleUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	opInput := ops.UpdateCapsuleInput{
		ID:               input.ID,
		Connections:      input.Connections,
		ConnectionGroups: input.ConnectionGroups,
	}
	if input.Controllers != nil {
		ids := make([]vault.Identity, 0, len(*input.Controllers))
		for _, s := range *input.Controllers {
			ids = append(ids, vault.Identity(s))
		}
		opInput.Controllers = &ids
	}
	result, err := ops.UpdateCapsule(h.env, h.store, opInput)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCapsuleDelete handles the capsule_delete tool call.
func (h *Handlers) HandleCapsuleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CapsuleDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.DeleteCapsule(h.env, h.store, h.blobs, ops.DeleteCapsuleInput{
		ID:    input.ID,
		Force: input.Force,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryCreate handles the memory_create tool call.
func (h *Handlers) HandleMemoryCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.CreateMemory(h.env, h.store, h.cfg, ops.CreateMemoryInput{
		CapsuleID:      input.CapsuleID,
		Kind:           vault.MemoryKind(input.Kind),
		Name:           input.Name,
		ContentType:    input.ContentType,
		DateOfMemory:   input.DateOfMemory,
		Tags:           input.Tags,
		Inline:         input.Inline,
		BlobRef:        input.BlobRef,
		External:       input.External,
		ExternalSize:   input.ExternalSize,
		Access:         input.Access,
		IdempotencyKey: input.IdempotencyKey,
		ParentFolderID: input.ParentFolderID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryFetch handles the memory_fetch tool call.
func (h *Handlers) HandleMemoryFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.FetchMemory(h.env, h.store, ops.FetchMemoryInput{
		CapsuleID:     input.CapsuleID,
		MemoryID:      input.MemoryID,
		SecureCode:    input.SecureCode,
		IncludeInline: input.IncludeInline,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryUpdate handles the memory_update tool call.
func (h *Handlers) HandleMemoryUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.UpdateMemory(h.env, h.store, h.cfg, ops.UpdateMemoryInput{
		CapsuleID:      input.CapsuleID,
		MemoryID:       input.MemoryID,
		Name:           input.Name,
		ContentType:    input.ContentType,
		DateOfMemory:   input.DateOfMemory,
		Tags:           input.Tags,
		Access:         input.Access,
		ParentFolderID: input.ParentFolderID,

		Processing:      input.Processing,
		ProcessingError: input.ProcessingError,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryDelete handles the memory_delete tool call.
func (h *Handlers) HandleMemoryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.DeleteMemory(h.env, h.store, h.blobs, ops.DeleteMemoryInput{
		CapsuleID:    input.CapsuleID,
		MemoryID:     input.MemoryID,
		DeleteAssets: input.DeleteAssets,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryList handles the memory_list tool call.
func (h *Handlers) HandleMemoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.ListMemories(h.env, h.store, ops.ListMemoriesInput{
		CapsuleID: input.CapsuleID,
		Cursor:    input.Cursor,
		Limit:     input.Limit,
		Kind:      vault.MemoryKind(input.Kind),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryBulkDelete handles the memory_bulk_delete tool call.
func (h *Handlers) HandleMemoryBulkDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryBulkDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.BulkDelete(h.env, h.store, h.blobs, ops.BulkDeleteInput{
		CapsuleID:    input.CapsuleID,
		MemoryIDs:    input.MemoryIDs,
		DeleteAssets: input.DeleteAssets,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryDeleteAll handles the memory_delete_all tool call.
func (h *Handlers) HandleMemoryDeleteAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryDeleteAllRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.DeleteAll(h.env, h.store, h.blobs, ops.DeleteAllInput{
		CapsuleID: input.CapsuleID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMemoryExport handles the memory_export tool call.
func (h *Handlers) HandleMemoryExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.ExportNote(h.env, h.store, ops.ExportNoteInput{
		CapsuleID:  input.CapsuleID,
		MemoryID:   input.MemoryID,
		ExportsDir: h.exportsDir,
		SecureCode: input.SecureCode,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEventMark handles the event_mark tool call.
func (h *Handlers) HandleEventMark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventMarkRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := ops.MarkEvent(h.env, h.store, ops.MarkEventInput{
		CapsuleID: input.CapsuleID,
		Event:     input.Event,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUploadBegin handles the upload_begin tool call.
func (h *Handlers) HandleUploadBegin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadBeginRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	sessionID, err := h.uploads.Begin(h.env, h.store, input.CapsuleID, input.AssetMetadata, input.ExpectedChunks, input.IdempotencyKey)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]string{"session_id": sessionID})
}

// HandleUploadPutChunk handles the upload_put_chunk tool call.
func (h *Handlers) HandleUploadPutChunk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadPutChunkRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	if err := h.uploads.PutChunk(input.SessionID, input.Index, input.Bytes); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]bool{"received": true})
}

// HandleUploadFinish handles the upload_finish tool call.
func (h *Handlers) HandleUploadFinish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadFinishRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	result, err := h.uploads.Finish(input.SessionID, input.ExpectedHash, input.ExpectedSize)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUploadAbort handles the upload_abort tool call.
func (h *Handlers) HandleUploadAbort(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadAbortRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidArgument(err.Error())), nil
	}
	h.uploads.Abort(input.SessionID)
	return successResult(map[string]bool{"aborted": true})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if vErr, ok := err.(*errors.VesselError); ok {
		errorObj := map[string]any{
			"code":    vErr.Code,
			"message": vErr.Message,
			"status":  vErr.Status,
		}
		if vErr.Code != errors.ErrInternal && vErr.Details != nil {
			errorObj["details"] = vErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
