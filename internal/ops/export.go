package ops

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/vault"
)

// ExportNoteInput contains parameters for the ExportNote operation.
type ExportNoteInput struct {
	CapsuleID string
	MemoryID  string

	// ExportsDir is the host's export directory; the rendered file
	// always lands inside it.
	ExportsDir string

	// SecureCode is the owner bypass, as in FetchMemory.
	SecureCode string
}

// ExportNoteOutput contains the result of the ExportNote operation.
type ExportNoteOutput struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// ExportNote renders a note memory's markdown content to an HTML file in
// the exports directory. Access is checked the same way as FetchMemory.
func ExportNote(e env.Env, st store.Store, input ExportNoteInput) (*ExportNoteOutput, error) {
	if input.ExportsDir == "" {
		return nil, errors.NewInvalidArgument("exports directory is required")
	}

	c, err := st.GetCapsule(input.CapsuleID)
	if err != nil {
		return nil, err
	}
	m, ok := c.Memories[input.MemoryID]
	if !ok {
		return nil, errors.NewNotFound("memory", input.MemoryID)
	}
	resolved := vault.ResolveAccess(m.Access, e.Now().Unix(), c.FiredEventSet())
	if !vault.CanAccess(resolved, e.Caller(), c) && !vault.VerifySecureCode(resolved, input.SecureCode) {
		return nil, errors.NewNotFound("memory", input.MemoryID)
	}

	if m.Info.Kind != vault.KindNote {
		return nil, errors.NewInvalidArgument("only note memories can be exported as HTML")
	}
	original := m.Asset(vault.AssetOriginal)
	if original == nil || len(original.Inline) == 0 {
		return nil, errors.NewInvalidArgument("note has no inline content to export")
	}

	var rendered bytes.Buffer
	if err := goldmark.Convert(original.Inline, &rendered); err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := os.MkdirAll(input.ExportsDir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create exports directory: %w", err))
	}

	exportPath := filepath.Join(input.ExportsDir, exportFileName(m))

	// Temp file + atomic rename so a failed export never clobbers an
	// existing file.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	if err := os.WriteFile(tempPath, rendered.Bytes(), 0600); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to write export file: %w", err))
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		os.Remove(tempPath)
		return nil, errors.NewInternal(err)
	}

	return &ExportNoteOutput{Path: exportPath, Bytes: rendered.Len()}, nil
}

// exportFileName builds a filesystem-safe name from the memory's display
// name and id.
func exportFileName(m *vault.Memory) string {
	name := strings.ToLower(strings.TrimSpace(m.Info.Name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	safe := strings.Trim(b.String(), "-")
	if safe == "" {
		safe = "note"
	}
	return fmt.Sprintf("%s-%s.html", safe, m.ID)
}
