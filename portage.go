// Package portage provides a minimal public API for running forum
// migrations programmatically.
//
// Most users should run the portage CLI. This package exports only the
// essential types for embedding a migration run in another Go program,
// such as a custom source adapter feeding the standard engine.
package portage

import (
	"github.com/stevermore/portage/internal/engine"
	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/source"
)

// Core types for driving a migration
type (
	Migrator = engine.Migrator
	Config   = engine.Config
	Source   = engine.Source
	Target   = engine.Target
	Row      = source.Row
	Rows     = source.Rows
)

// Entity types recorded in the persistent id mapping
const (
	EntityGroup    = mapping.Group
	EntityUser     = mapping.User
	EntityCategory = mapping.Category
	EntityTopic    = mapping.Topic
	EntityPost     = mapping.Post
	EntityUpload   = mapping.Upload
)

// New builds a migrator over a custom source and target pair. Use the
// portage CLI for the stock vBulletin-to-PostgreSQL path.
func New(cfg Config, src Source, tgt Target) (*Migrator, error) {
	return engine.New(cfg, src, tgt)
}
