package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/target"
)

// each entity type that carries the import_id side channel
var verifyChecks = []struct {
	entity      mapping.EntityType
	table       string
	ownerColumn string
}{
	{mapping.Group, "group_custom_fields", "group_id"},
	{mapping.User, "user_custom_fields", "user_id"},
	{mapping.Category, "category_custom_fields", "category_id"},
	{mapping.Topic, "topic_custom_fields", "topic_id"},
	{mapping.Post, "post_custom_fields", "post_id"},
	{mapping.Upload, "upload_custom_fields", "upload_id"},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Cross-check the mapping table against the import_id fields",
	Long: `Cross-check the persistent id mapping table against the import_id custom
fields written next to every migrated row.

Both record the same legacy-id-to-target-id relation through different
channels, so any disagreement means rows were lost or the mapping table was
modified out of band. Rows the migration deliberately collapsed (duplicate
emails, duplicate uploads) map onto an existing target row and are counted,
not flagged.`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		cfg := loadConfig()

		ctx, cancel := signalContext()
		defer cancel()

		tgt, err := target.Open(ctx, cfg.TargetDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: connect target: %v\n", err)
			os.Exit(1)
		}
		defer tgt.Close()

		issues, err := runVerify(ctx, tgt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(issues) > 0 {
			fmt.Println("Verification found issues:")
			for _, issue := range issues {
				fmt.Printf("  • %s\n", issue)
			}
			os.Exit(1)
		}
		fmt.Println("Mapping table and import fields agree")
	},
}

func runVerify(ctx context.Context, tgt *target.DB) ([]string, error) {
	mapped := make(map[mapping.EntityType]map[string]int64)
	if err := tgt.Load(ctx, func(e mapping.Entry) error {
		byOrig := mapped[e.Type]
		if byOrig == nil {
			byOrig = make(map[string]int64)
			mapped[e.Type] = byOrig
		}
		byOrig[e.OriginalID] = e.TargetID
		return nil
	}); err != nil {
		return nil, err
	}

	var issues []string
	for _, check := range verifyChecks {
		byOrig := mapped[check.entity]

		var fieldRows, mismatched int64
		err := tgt.ImportFieldValues(ctx, check.table, check.ownerColumn,
			func(original string, ownerID int64) error {
				fieldRows++
				want, ok := byOrig[original]
				switch {
				case !ok:
					mismatched++
					if mismatched <= 5 {
						issues = append(issues, fmt.Sprintf(
							"%s: %s has import_id %s with no mapping entry",
							check.entity, check.table, original))
					}
				case want != ownerID:
					mismatched++
					if mismatched <= 5 {
						issues = append(issues, fmt.Sprintf(
							"%s: original %s maps to %d but row %d claims it",
							check.entity, original, want, ownerID))
					}
				}
				return nil
			})
		if err != nil {
			return nil, err
		}
		if mismatched > 5 {
			issues = append(issues, fmt.Sprintf("%s: %d further mismatches", check.entity, mismatched-5))
		}

		if int64(len(byOrig)) != fieldRows {
			issues = append(issues, fmt.Sprintf(
				"%s: %d mapping entries but %d import_id fields",
				check.entity, len(byOrig), fieldRows))
		}

		fmt.Printf("%-10s %8d mapped  %8d import fields\n",
			check.entity, len(byOrig), fieldRows)
	}
	return issues, nil
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
