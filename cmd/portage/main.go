// Command portage migrates a legacy vBulletin forum into a Discourse-style
// PostgreSQL schema.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stevermore/portage/internal/config"
)

// Version and Build are set via -ldflags at release time.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	configPath string
	verbose    bool

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "portage",
	Short: "portage - legacy forum migration tool",
	Long: `Migrates a vBulletin 4.x forum database into a normalized discussion
schema: users, groups, categories, topics, posts, private messages,
attachments, avatars and likes, with bbcode rewritten to markdown.

Every migrated row keeps its legacy id in a persistent mapping table, so an
interrupted run can be restarted and picks up where it stopped for users
(matched by email) and uploads (matched by content hash).

Configuration is read from portage.yaml in the working directory (override
with --config) and from PORTAGE_* environment variables.

Examples:
  portage migrate
  portage migrate --config /etc/portage.yaml
  portage verify
  portage repair post-numbers`,
	Run: func(cmd *cobra.Command, _ []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("portage version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to portage.yaml (default ./portage.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().Bool("version", false, "print version and exit")
}

// loadConfig resolves configuration for subcommands that need it.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg
}

// signalContext returns a context cancelled on SIGINT or SIGTERM so a long
// copy can stop at the next batch boundary.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
