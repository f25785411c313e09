package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stevermore/portage/internal/engine"
	"github.com/stevermore/portage/internal/markup"
	"github.com/stevermore/portage/internal/source"
	"github.com/stevermore/portage/internal/target"
	"github.com/stevermore/portage/internal/uploads"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the full migration",
	Long: `Run the full migration in dependency order: groups, users, categories,
topics, posts, private messages, uploads, avatars, likes, poll votes.

The run is resumable for users and uploads: users already present in the
target (matched by email) and uploads already stored (matched by SHA1) are
mapped instead of re-inserted. Other entity types must not be re-run against
a partially migrated target without clearing the mapping table first.`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		cfg := loadConfig()

		ctx, cancel := signalContext()
		defer cancel()

		src, err := source.OpenVBulletin(ctx, cfg.SourceDSN, cfg.SourcePrefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: connect source: %v\n", err)
			os.Exit(1)
		}
		defer src.Close()
		if st, err := src.ServerTime(ctx); err == nil {
			log.WithField("source_time", st).Debug("source clock")
		}

		tgt, err := target.Open(ctx, cfg.TargetDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: connect target: %v\n", err)
			os.Exit(1)
		}
		defer tgt.Close()

		ecfg := engine.Config{
			BatchSize:      cfg.BatchSize,
			Charset:        cfg.SourceCharset,
			SystemUserID:   cfg.SystemUserID,
			AttachmentsDir: cfg.AttachmentsDir,
			Log:            log,
		}
		if cfg.BBCodeToMarkdown {
			ecfg.Converter = markup.MarkdownConverter()
		}
		if cfg.UploadsDir != "" {
			ecfg.Uploads = uploads.NewLocalStore(cfg.UploadsDir, cfg.UploadsBaseURL)
		}

		m, err := engine.New(ecfg, src, tgt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		runErr := m.Run(ctx)
		printStats(m)
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Error: migration failed: %v\n", runErr)
			os.Exit(1)
		}
	},
}

func printStats(m *engine.Migrator) {
	labels := make([]string, 0, len(m.Stats))
	for label := range m.Stats {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	fmt.Println()
	for _, label := range labels {
		s := m.Stats[label]
		fmt.Printf("%-20s %8d rows  %8d created  %6d skipped  %6d dropped  %6d failed\n",
			label, s.Processed, s.Created, s.Skipped, s.Dropped, s.Failed)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
