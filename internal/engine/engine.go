// Package engine orchestrates a migration run: it drains each entity type in
// dependency order through the batch loader, wiring the id allocator, name
// deduplicator and mapping store into per-entity finalizers, and invoking the
// markup transformer from within post processing.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stevermore/portage/internal/dedupe"
	"github.com/stevermore/portage/internal/idalloc"
	"github.com/stevermore/portage/internal/loader"
	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/markup"
	"github.com/stevermore/portage/internal/postnum"
	"github.com/stevermore/portage/internal/source"
	"github.com/stevermore/portage/internal/uploads"
)

// Source supplies the raw row streams, one per entity type, each exhaustible
// exactly once per run. Posts must arrive in original chronological order for
// quote resolution to be maximal (a precondition, not a correctness
// requirement).
type Source interface {
	Groups(ctx context.Context) (source.Rows, error)
	Users(ctx context.Context) (source.Rows, error)
	Categories(ctx context.Context) (source.Rows, error)
	Topics(ctx context.Context) (source.Rows, error)
	Posts(ctx context.Context) (source.Rows, error)
	PrivateTopics(ctx context.Context) (source.Rows, error)
	Attachments(ctx context.Context) (source.Rows, error)
	Avatars(ctx context.Context) (source.Rows, error)
	Likes(ctx context.Context) (source.Rows, error)
	Votes(ctx context.Context) (source.Rows, error)
}

// Target is the destination store: the bulk-insert channel plus the seed and
// lookup queries the run needs. *target.DB satisfies it.
type Target interface {
	loader.Sink
	idalloc.Seeder
	idalloc.Finalizer
	mapping.Backend
	postnum.Primer
	markup.UserLookup

	EnsureMappingTable(ctx context.Context) error
	ExistingEmails(ctx context.Context) (map[string]int64, error)
	ExistingUploadHashes(ctx context.Context) (map[string]int64, error)
	ExistingNames(ctx context.Context, fn func(string)) error
	AppendToPost(ctx context.Context, postID int64, rawRef, cookedRef string) error
}

// Config tunes a run.
type Config struct {
	// BatchSize overrides the loader default when positive.
	BatchSize int
	// Charset is the declared source character set, from configuration.
	Charset string
	// Converter, when non-nil, enables the optional external
	// bbcode-to-markdown conversion step.
	Converter markup.Converter
	// SystemUserID is the author fallback for content whose user cannot be
	// resolved.
	SystemUserID int64
	// AttachmentsDir is where the legacy attachment files live on disk.
	AttachmentsDir string
	// Uploads stores migrated binary assets. Nil disables attachment and
	// avatar migration.
	Uploads uploads.Store
	// Log receives progress and error lines.
	Log *logrus.Logger
}

type postRef struct {
	number  int
	topicID int64
}

// Migrator holds the per-run state shared by the entity finalizers. It is
// single-threaded by design: entity types are drained one after another and
// rows are processed strictly in input order.
type Migrator struct {
	cfg Config
	src Source
	tgt Target

	maps   *mapping.Store
	ids    *idalloc.Allocator
	names  *dedupe.Pool
	posts  *postnum.Index
	markup *markup.Transformer

	// usernameRemap maps source usernames that collided during dedup to the
	// suffixed name they received, for quote attribution.
	usernameRemap map[string]string
	// postRefs locates each migrated post for quote resolution.
	postRefs map[int64]postRef
	// emailIndex collapses users sharing an address onto one account.
	emailIndex map[string]int64
	// uploadDedupe collapses identical file content onto one upload.
	uploadDedupe *uploads.Deduper

	log *logrus.Logger

	// Stats per entity label, filled as the run progresses.
	Stats map[string]*loader.Stats
}

// New assembles a Migrator. Call Run exactly once.
func New(cfg Config, src Source, tgt Target) (*Migrator, error) {
	if cfg.SystemUserID == 0 {
		cfg.SystemUserID = -1
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Migrator{
		cfg:           cfg,
		src:           src,
		tgt:           tgt,
		maps:          mapping.NewStore(tgt),
		names:         dedupe.NewPool(),
		posts:         postnum.NewIndex(),
		usernameRemap: make(map[string]string),
		postRefs:      make(map[int64]postRef),
		log:           log,
		Stats:         make(map[string]*loader.Stats),
	}

	tr, err := markup.New(m, tgt, markup.Options{
		Converter: cfg.Converter,
		Charset:   cfg.Charset,
	})
	if err != nil {
		return nil, err
	}
	m.markup = tr
	return m, nil
}

// ResolvePost implements markup.QuoteResolver against the mapping being
// built by this run. Posts migrated by an earlier run resolve to a target id
// but have no in-memory location; the quote degrades to username-only form.
func (m *Migrator) ResolvePost(orig string) (int, int64, bool) {
	id, ok := m.maps.Get(mapping.Post, orig)
	if !ok {
		return 0, 0, false
	}
	ref, ok := m.postRefs[id]
	if !ok {
		return 0, 0, false
	}
	return ref.number, ref.topicID, true
}

// ResolveUsername implements markup.QuoteResolver: names that were suffixed
// during deduplication resolve to their current form, everything else passes
// through.
func (m *Migrator) ResolveUsername(orig string) string {
	if current, ok := m.usernameRemap[orig]; ok {
		return current
	}
	return orig
}
