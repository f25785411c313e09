package engine

import (
	"context"
	"fmt"

	"github.com/stevermore/portage/internal/dedupe"
	"github.com/stevermore/portage/internal/idalloc"
	"github.com/stevermore/portage/internal/loader"
	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/source"
	"github.com/stevermore/portage/internal/uploads"
)

var allEntityTypes = []mapping.EntityType{
	mapping.Group, mapping.User, mapping.Category,
	mapping.Topic, mapping.Post, mapping.Upload,
}

// Run executes the full migration in dependency order. Partial progress is
// expected on failure; re-running resumes from the persisted mapping table.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.prepare(ctx); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"groups", m.createGroups},
		{"users", m.createUsers},
		{"categories", m.createCategories},
		{"topics", m.createTopics},
		{"posts", m.createPosts},
		{"private messages", m.createPrivateMessages},
		{"uploads", m.createUploads},
		{"avatars", m.createAvatars},
		{"likes", m.createLikes},
		{"poll votes", m.createVotes},
	}
	for _, step := range steps {
		m.log.WithField("step", step.name).Info("starting")
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		// flush after every entity type so an interrupted run can resume
		if err := m.maps.Flush(ctx); err != nil {
			return err
		}
	}

	return m.finish(ctx)
}

// prepare seeds every stateful component from the target store: the mapping
// index, the id counters, the name pool, the post-number index and the
// duplicate-detection indices.
func (m *Migrator) prepare(ctx context.Context) error {
	if err := m.tgt.EnsureMappingTable(ctx); err != nil {
		return err
	}

	n, err := m.maps.BulkLoad(ctx)
	if err != nil {
		return err
	}
	m.log.WithField("mappings", n).Info("mapping store loaded")

	ids, err := idalloc.Seed(ctx, m.tgt, allEntityTypes...)
	if err != nil {
		return err
	}
	m.ids = ids

	if err := m.tgt.ExistingNames(ctx, func(name string) {
		m.names.Preload(dedupe.NamespaceUsers, name)
	}); err != nil {
		return err
	}

	if err := m.posts.Prime(ctx, m.tgt); err != nil {
		return err
	}

	emails, err := m.tgt.ExistingEmails(ctx)
	if err != nil {
		return err
	}
	m.emailIndex = emails

	hashes, err := m.tgt.ExistingUploadHashes(ctx)
	if err != nil {
		return err
	}
	m.uploadDedupe = uploads.NewDeduper(hashes)

	return nil
}

// finish pushes the allocator state back into the storage engine and repairs
// the denormalized per-topic counters from the freshly inserted posts.
func (m *Migrator) finish(ctx context.Context) error {
	if err := m.ids.Finalize(ctx, m.tgt); err != nil {
		return err
	}
	if _, err := m.tgt.RepairPostNumbers(ctx); err != nil {
		return err
	}
	if err := m.maps.Flush(ctx); err != nil {
		return err
	}
	m.log.Info("migration complete")
	return nil
}

// load is the shared path from a row stream to the bulk channel.
func (m *Migrator) load(ctx context.Context, label string, rows source.Rows, transform loader.Transform) error {
	stats, err := loader.Load(ctx, m.tgt, rows, transform, loader.Options{
		Label:     label,
		BatchSize: m.cfg.BatchSize,
		Log:       m.log,
	})
	m.Stats[label] = stats
	return err
}

// loadRecords flushes records assembled during another entity's load.
func (m *Migrator) loadRecords(ctx context.Context, label string, records []loader.Record) error {
	if len(records) == 0 {
		return nil
	}
	stats, err := loader.LoadRecords(ctx, m.tgt, records, loader.Options{
		Label:     label,
		BatchSize: m.cfg.BatchSize,
		Log:       m.log,
	})
	m.Stats[label] = stats
	return err
}
