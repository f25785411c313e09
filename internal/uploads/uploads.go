// Package uploads moves binary attachments into the target upload store,
// deduplicating by content hash so that identical files migrated twice (or
// re-migrated after an interrupted run) collapse onto one stored upload.
package uploads

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Handle identifies a stored upload.
type Handle struct {
	ID  int64
	URL string
}

// Store is the external upload host. The engine hashes content before
// calling Create, so implementations never see a duplicate payload within
// one run. id is the upload's allocated target id; implementations must
// derive any id-based storage path or URL from it, never from internal
// counters, so the persisted row and its URL agree.
type Store interface {
	Create(ctx context.Context, id, ownerID int64, filePath, displayName string) (Handle, error)
	RenderReference(h Handle, displayName string) string
}

// HashFile returns the hex sha1 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Deduper tracks which content hashes already have an upload id, seeded from
// the target before a run and extended as uploads are created.
type Deduper struct {
	known map[string]int64
}

// NewDeduper seeds the deduper; seed may be nil.
func NewDeduper(seed map[string]int64) *Deduper {
	if seed == nil {
		seed = make(map[string]int64)
	}
	return &Deduper{known: seed}
}

// Lookup returns the upload id previously stored for sha, if any.
func (d *Deduper) Lookup(sha string) (int64, bool) {
	id, ok := d.known[sha]
	return id, ok
}

// Record remembers that sha is stored under upload id.
func (d *Deduper) Record(sha string, id int64) {
	d.known[sha] = id
}
