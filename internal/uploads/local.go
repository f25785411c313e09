package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore copies upload files into a directory tree under BaseDir and
// serves them under BaseURL. It is the default Store for self-hosted targets.
type LocalStore struct {
	BaseDir string
	BaseURL string
}

// NewLocalStore returns a store rooted at baseDir.
func NewLocalStore(baseDir, baseURL string) *LocalStore {
	return &LocalStore{BaseDir: baseDir, BaseURL: baseURL}
}

func (s *LocalStore) Create(_ context.Context, id, ownerID int64, filePath, displayName string) (Handle, error) {
	ext := strings.ToLower(filepath.Ext(displayName))
	rel := filepath.Join(fmt.Sprintf("%03d", id%1000), fmt.Sprintf("%d%s", id, ext))
	dst := filepath.Join(s.BaseDir, rel)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Handle{}, fmt.Errorf("create upload dir: %w", err)
	}
	if err := copyFile(filePath, dst); err != nil {
		return Handle{}, err
	}
	return Handle{ID: id, URL: s.BaseURL + "/" + filepath.ToSlash(rel)}, nil
}

// RenderReference produces the inline markup referencing a stored upload:
// images inline, everything else as a labelled link.
func (s *LocalStore) RenderReference(h Handle, displayName string) string {
	switch strings.ToLower(filepath.Ext(displayName)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return fmt.Sprintf("![%s](%s)", displayName, h.URL)
	default:
		return fmt.Sprintf("[%s](%s)", displayName, h.URL)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open upload source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy upload: %w", err)
	}
	return out.Close()
}
