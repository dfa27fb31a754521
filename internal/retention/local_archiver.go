package retention

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corewire/assistant-core/pkg/models"
	"github.com/rs/zerolog/log"
)

// LocalAuditArchiver writes audit events and admin data-deletion results
// as JSONL files to a local directory, for compliance retention outside
// the hot store.
//
// Directory structure:
//
//	{basePath}/{workspace}/audit_events/2026-02-20T15-04-05Z.jsonl[.gz]
//	{basePath}/{workspace}/deletions/2026-02-20T15-04-05Z.jsonl[.gz]
type LocalAuditArchiver struct {
	basePath string
	compress bool
}

// NewLocalAuditArchiver creates a file-based archiver. If basePath is
// empty, it defaults to "~/.assistant-core/archive".
func NewLocalAuditArchiver(basePath string, compress bool) *LocalAuditArchiver {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			basePath = "/tmp/assistant-core/archive"
		} else {
			basePath = filepath.Join(home, ".assistant-core", "archive")
		}
	}
	return &LocalAuditArchiver{basePath: basePath, compress: compress}
}

// ArchiveAuditEvents appends a batch of audit events to a new JSONL file
// and returns its path.
func (a *LocalAuditArchiver) ArchiveAuditEvents(_ context.Context, workspaceID string, events []models.AuditEvent) (string, error) {
	return a.writeJSONL(workspaceID, "audit_events", events)
}

// ArchiveDeletionResult persists an admin data-deletion coordinator
// result for audit purposes.
func (a *LocalAuditArchiver) ArchiveDeletionResult(_ context.Context, workspaceID string, result any) (string, error) {
	return a.writeJSONL(workspaceID, "deletions", []any{result})
}

func (a *LocalAuditArchiver) writeJSONL(workspaceID, subdir string, records any) (string, error) {
	dir := filepath.Join(a.basePath, workspaceID, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	filename := time.Now().UTC().Format("2006-01-02T15-04-05Z") + ".jsonl"
	if a.compress {
		filename += ".gz"
	}
	fpath := filepath.Join(dir, filename)

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if a.compress {
		gw := gzip.NewWriter(f)
		defer gw.Close()
		enc = json.NewEncoder(gw)
	}

	switch recs := records.(type) {
	case []models.AuditEvent:
		for _, e := range recs {
			if err := enc.Encode(e); err != nil {
				return "", fmt.Errorf("encode audit event %s: %w", e.ID, err)
			}
		}
	case []any:
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return "", fmt.Errorf("encode record: %w", err)
			}
		}
	}

	log.Debug().Str("path", fpath).Str("workspace", workspaceID).Msg("archived records to local file")
	return fpath, nil
}

// HealthCheck verifies the archive path is writable.
func (a *LocalAuditArchiver) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(a.basePath, 0o755); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	testFile := filepath.Join(a.basePath, ".healthcheck")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}
