package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/mcp"
	"github.com/hpungsan/vessel/internal/ops"
	"github.com/hpungsan/vessel/internal/upload"
	"github.com/hpungsan/vessel/internal/vault"
)

// asFlag is registered on every leaf command so urfave accepts it; the
// caller identity is resolved in main before the app runs.
func asFlag() cli.Flag {
	return &cli.StringFlag{Name: "as", Usage: "Caller identity (or set VESSEL_CALLER)"}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *mcp.Deps) *cli.App {
	app := &cli.App{
		Name:    "vessel",
		Usage:   "Personal memory preservation service",
		Version: Version,
		Commands: []*cli.Command{
			capsuleCmd(deps),
			memoryCmd(deps),
			uploadCmd(deps),
			eventCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// capsuleCmd groups capsule lifecycle subcommands.
func capsuleCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "capsule",
		Usage: "Create, inspect, and manage capsules",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a capsule (omit --subject for your own)",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Identity the capsule preserves memories for"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.CreateCapsule(deps.Env, deps.Store, ops.CreateCapsuleInput{
						Subject: vault.Identity(c.String("subject")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "fetch",
				Usage:     "Fetch a capsule by ID",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{asFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("capsule id is required"))
					}
					output, err := ops.FetchCapsule(deps.Env, deps.Store, ops.FetchCapsuleInput{
						ID: c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List capsules you can see",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "cursor", Usage: "Cursor from a previous page"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum items to return"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListCapsules(deps.Env, deps.Store, ops.ListCapsulesInput{
						Cursor: c.String("cursor"),
						Limit:  c.Int("limit"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "update",
				Usage:     "Update capsule membership",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "controllers", Usage: "Comma-separated controller identities (owners only)"},
					&cli.StringFlag{Name: "connections", Usage: "Replacement connection list as JSON"},
					&cli.StringFlag{Name: "groups", Usage: "Replacement connection group list as JSON"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("capsule id is required"))
					}
					input := ops.UpdateCapsuleInput{ID: c.Args().First()}

					if c.IsSet("controllers") {
						ids := parseIdentities(c.String("controllers"))
						input.Controllers = &ids
					}
					if raw := c.String("connections"); raw != "" {
						var conns []vault.Connection
						if err := json.Unmarshal([]byte(raw), &conns); err != nil {
							return outputError(errors.NewInvalidArgument("connections must be a JSON array"))
						}
						input.Connections = &conns
					}
					if raw := c.String("groups"); raw != "" {
						var groups []vault.ConnectionGroup
						if err := json.Unmarshal([]byte(raw), &groups); err != nil {
							return outputError(errors.NewInvalidArgument("groups must be a JSON array"))
						}
						input.ConnectionGroups = &groups
					}

					output, err := ops.UpdateCapsule(deps.Env, deps.Store, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a capsule and reclaim its storage",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.BoolFlag{Name: "force", Usage: "Delete even if memories still hold internal assets"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("capsule id is required"))
					}
					output, err := ops.DeleteCapsule(deps.Env, deps.Store, deps.Blobs, ops.DeleteCapsuleInput{
						ID:    c.Args().First(),
						Force: c.Bool("force"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// memoryCmd groups memory subcommands.
func memoryCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Create, inspect, and manage memories",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a memory (inline content is read from stdin when piped)",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Required: true, Usage: "image|video|audio|document|note"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "content-type", Usage: "MIME type of the original asset"},
					&cli.Int64Flag{Name: "date-of-memory", Usage: "Unix timestamp the memory depicts"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
					&cli.StringFlag{Name: "blob-ref", Usage: "JSON reference returned by upload finish"},
					&cli.StringFlag{Name: "external", Usage: "JSON external asset reference"},
					&cli.Int64Flag{Name: "external-size", Usage: "Declared size of the external asset"},
					&cli.StringFlag{Name: "access", Usage: "JSON access policy (default: private)"},
					&cli.StringFlag{Name: "idempotency-key", Usage: "Dedupe key"},
					&cli.StringFlag{Name: "folder", Usage: "Parent folder ID"},
				},
				Action: func(c *cli.Context) error {
					input := ops.CreateMemoryInput{
						CapsuleID:      c.String("capsule"),
						Kind:           vault.MemoryKind(c.String("kind")),
						Name:           c.String("name"),
						ContentType:    c.String("content-type"),
						IdempotencyKey: c.String("idempotency-key"),
						ParentFolderID: c.String("folder"),
						ExternalSize:   c.Int64("external-size"),
					}
					if c.IsSet("date-of-memory") {
						d := c.Int64("date-of-memory")
						input.DateOfMemory = &d
					}
					if tags := c.String("tags"); tags != "" {
						input.Tags = parseTags(tags)
					}
					if stdinHasData() {
						data, err := io.ReadAll(os.Stdin)
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						input.Inline = data
					}
					if raw := c.String("blob-ref"); raw != "" {
						var ref blob.Ref
						if err := json.Unmarshal([]byte(raw), &ref); err != nil {
							return outputError(errors.NewInvalidArgument("blob-ref must be a JSON object"))
						}
						input.BlobRef = &ref
					}
					if raw := c.String("external"); raw != "" {
						var ext vault.ExternalRef
						if err := json.Unmarshal([]byte(raw), &ext); err != nil {
							return outputError(errors.NewInvalidArgument("external must be a JSON object"))
						}
						input.External = &ext
					}
					if raw := c.String("access"); raw != "" {
						var access vault.MemoryAccess
						if err := json.Unmarshal([]byte(raw), &access); err != nil {
							return outputError(errors.NewInvalidArgument("access must be a JSON object"))
						}
						input.Access = &access
					}

					output, err := ops.CreateMemory(deps.Env, deps.Store, deps.Config, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "fetch",
				Usage:     "Fetch a memory",
				ArgsUsage: "<memory-id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.StringFlag{Name: "code", Usage: "Owner secure code"},
					&cli.BoolFlag{Name: "no-inline", Usage: "Exclude inline asset bytes"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("memory id is required"))
					}
					input := ops.FetchMemoryInput{
						CapsuleID:  c.String("capsule"),
						MemoryID:   c.Args().First(),
						SecureCode: c.String("code"),
					}
					if c.Bool("no-inline") {
						includeInline := false
						input.IncludeInline = &includeInline
					}
					output, err := ops.FetchMemory(deps.Env, deps.Store, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "update",
				Usage:     "Update a memory's fields or access policy",
				ArgsUsage: "<memory-id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New display name"},
					&cli.StringFlag{Name: "content-type", Usage: "New MIME type"},
					&cli.Int64Flag{Name: "date-of-memory", Usage: "New unix timestamp the memory depicts"},
					&cli.StringFlag{Name: "tags", Usage: "Replacement comma-separated tags"},
					&cli.StringFlag{Name: "access", Usage: "Replacement JSON access policy"},
					&cli.StringFlag{Name: "folder", Usage: "New parent folder ID"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("memory id is required"))
					}
					input := ops.UpdateMemoryInput{
						CapsuleID: c.String("capsule"),
						MemoryID:  c.Args().First(),
					}
					if name := c.String("name"); name != "" {
						input.Name = &name
					}
					if ct := c.String("content-type"); ct != "" {
						input.ContentType = &ct
					}
					if c.IsSet("date-of-memory") {
						d := c.Int64("date-of-memory")
						input.DateOfMemory = &d
					}
					if c.IsSet("tags") {
						tags := parseTags(c.String("tags"))
						input.Tags = &tags
					}
					if raw := c.String("access"); raw != "" {
						var access vault.MemoryAccess
						if err := json.Unmarshal([]byte(raw), &access); err != nil {
							return outputError(errors.NewInvalidArgument("access must be a JSON object"))
						}
						input.Access = &access
					}
					if c.IsSet("folder") {
						folder := c.String("folder")
						input.ParentFolderID = &folder
					}

					output, err := ops.UpdateMemory(deps.Env, deps.Store, deps.Config, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a memory",
				ArgsUsage: "<memory-id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.BoolFlag{Name: "delete-assets", Usage: "Also reclaim internal blob storage"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("memory id is required"))
					}
					output, err := ops.DeleteMemory(deps.Env, deps.Store, deps.Blobs, ops.DeleteMemoryInput{
						CapsuleID:    c.String("capsule"),
						MemoryID:     c.Args().First(),
						DeleteAssets: c.Bool("delete-assets"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List memories you can currently access",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.StringFlag{Name: "cursor", Usage: "Cursor from a previous page"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum items to return"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by memory kind"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListMemories(deps.Env, deps.Store, ops.ListMemoriesInput{
						CapsuleID: c.String("capsule"),
						Cursor:    c.String("cursor"),
						Limit:     c.Int("limit"),
						Kind:      vault.MemoryKind(c.String("kind")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "bulk-delete",
				Usage:     "Delete several memories, reporting per-item results",
				ArgsUsage: "<memory-id> [memory-id...]",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.BoolFlag{Name: "delete-assets", Usage: "Also reclaim internal blob storage"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("at least one memory id is required"))
					}
					output, err := ops.BulkDelete(deps.Env, deps.Store, deps.Blobs, ops.BulkDeleteInput{
						CapsuleID:    c.String("capsule"),
						MemoryIDs:    c.Args().Slice(),
						DeleteAssets: c.Bool("delete-assets"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "delete-all",
				Usage: "Atomically wipe every memory in a capsule",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteAll(deps.Env, deps.Store, deps.Blobs, ops.DeleteAllInput{
						CapsuleID: c.String("capsule"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "export",
				Usage:     "Render a note memory's markdown to an HTML file",
				ArgsUsage: "<memory-id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.StringFlag{Name: "code", Usage: "Owner secure code"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("memory id is required"))
					}
					output, err := ops.ExportNote(deps.Env, deps.Store, ops.ExportNoteInput{
						CapsuleID:  c.String("capsule"),
						MemoryID:   c.Args().First(),
						ExportsDir: deps.ExportsDir,
						SecureCode: c.String("code"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// uploadCmd groups chunked upload subcommands.
func uploadCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Chunked upload sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "begin",
				Usage: "Begin an upload session",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
					&cli.IntFlag{Name: "chunks", Required: true, Usage: "Number of chunks to send"},
					&cli.StringFlag{Name: "name", Usage: "Declared asset name"},
					&cli.StringFlag{Name: "content-type", Usage: "Declared MIME type"},
					&cli.Int64Flag{Name: "size", Usage: "Declared total byte size"},
					&cli.StringFlag{Name: "idempotency-key", Usage: "Dedupe key"},
				},
				Action: func(c *cli.Context) error {
					meta := upload.AssetMeta{
						Name:        c.String("name"),
						ContentType: c.String("content-type"),
						Size:        c.Int64("size"),
					}
					sessionID, err := deps.Uploads.Begin(deps.Env, deps.Store, c.String("capsule"), meta, c.Int("chunks"), c.String("idempotency-key"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]string{"session_id": sessionID})
				},
			},
			{
				Name:      "put-chunk",
				Usage:     "Upload one chunk (bytes read from stdin)",
				ArgsUsage: "<session-id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Required: true, Usage: "Zero-based chunk index"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("session id is required"))
					}
					if !stdinHasData() {
						return outputError(errors.NewInvalidArgument("chunk bytes must be piped via stdin"))
					}
					data, err := io.ReadAll(os.Stdin)
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					if err := deps.Uploads.PutChunk(c.Args().First(), c.Int("index"), data); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]bool{"received": true})
				},
			},
			{
				Name:      "finish",
				Usage:     "Assemble chunks, verify the hash, and commit to blob storage",
				ArgsUsage: "<session-id>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "hash", Required: true, Usage: "Hex BLAKE3 hash of the assembled content"},
					&cli.Int64Flag{Name: "size", Usage: "Total byte size of the assembled content"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("session id is required"))
					}
					output, err := deps.Uploads.Finish(c.Args().First(), c.String("hash"), c.Int64("size"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "abort",
				Usage:     "Abort an upload session",
				ArgsUsage: "<session-id>",
				Flags:     []cli.Flag{asFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("session id is required"))
					}
					deps.Uploads.Abort(c.Args().First())
					return outputJSON(map[string]bool{"aborted": true})
				},
			},
		},
	}
}

// eventCmd groups event subcommands.
func eventCmd(deps *mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Capsule life events",
		Subcommands: []*cli.Command{
			{
				Name:      "mark",
				Usage:     "Mark a named event as fired for a capsule",
				ArgsUsage: "<event>",
				Flags: []cli.Flag{
					asFlag(),
					&cli.StringFlag{Name: "capsule", Aliases: []string{"c"}, Required: true, Usage: "Capsule ID"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidArgument("event name is required"))
					}
					output, err := ops.MarkEvent(deps.Env, deps.Store, ops.MarkEventInput{
						CapsuleID: c.String("capsule"),
						Event:     c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if vErr, ok := err.(*errors.VesselError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", vErr.Code, vErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseIdentities splits a comma-separated identity list.
func parseIdentities(s string) []vault.Identity {
	ids := make([]vault.Identity, 0)
	for _, t := range parseTags(s) {
		ids = append(ids, vault.Identity(t))
	}
	return ids
}
