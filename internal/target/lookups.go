package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/stevermore/portage/internal/markup"
)

// HighestPostNumbers streams (topic id, highest post number) for every topic.
func (d *DB) HighestPostNumbers(ctx context.Context, fn func(topicID int64, highest int) error) error {
	rows, err := d.pool.Query(ctx, "SELECT id, highest_post_number FROM topics")
	if err != nil {
		return fmt.Errorf("load highest post numbers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			highest int
		)
		if err := rows.Scan(&id, &highest); err != nil {
			return err
		}
		if err := fn(id, highest); err != nil {
			return err
		}
	}
	return rows.Err()
}

// RepairPostNumbers recomputes each topic's highest-post-number counter from
// its non-deleted posts. An interrupted previous run can leave the
// denormalized counters stale; this runs before any post is processed.
func (d *DB) RepairPostNumbers(ctx context.Context) (int64, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE topics t
		   SET highest_post_number = sub.highest
		  FROM (SELECT topic_id, COALESCE(MAX(post_number), 0) AS highest
		          FROM posts
		         WHERE deleted_at IS NULL
		         GROUP BY topic_id) sub
		 WHERE sub.topic_id = t.id
		   AND t.highest_post_number IS DISTINCT FROM sub.highest`)
	if err != nil {
		return 0, fmt.Errorf("repair post numbers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindUser resolves a username to its display record for quote rendering.
// Absence is not an error.
func (d *DB) FindUser(username string) (markup.UserCard, bool) {
	var card markup.UserCard
	err := d.pool.QueryRow(context.Background(), `
		SELECT u.username, COALESCE(u.name, ''),
		       COALESCE('/user_avatar/' || u.username_lower || '/{size}.png', '')
		  FROM users u
		 WHERE u.username_lower = $1`,
		strings.ToLower(username),
	).Scan(&card.Username, &card.Name, &card.AvatarTemplate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return markup.UserCard{}, false
		}
		return markup.UserCard{}, false
	}
	return card, true
}

// AppendToPost appends an attachment reference to an already-migrated post,
// both to the raw markdown and, pre-rendered, to the cooked HTML.
func (d *DB) AppendToPost(ctx context.Context, postID int64, rawRef, cookedRef string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE posts
		   SET raw = raw || E'\n\n' || $2,
		       cooked = cooked || $3
		 WHERE id = $1`, postID, rawRef, cookedRef)
	if err != nil {
		return fmt.Errorf("append reference to post %d: %w", postID, err)
	}
	return nil
}

// ExistingEmails returns lowercased email -> user id for every address in the
// target, used to collapse duplicate-source users onto existing accounts.
func (d *DB) ExistingEmails(ctx context.Context) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, "SELECT lower(email), user_id FROM user_emails")
	if err != nil {
		return nil, fmt.Errorf("load existing emails: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			email string
			id    int64
		)
		if err := rows.Scan(&email, &id); err != nil {
			return nil, err
		}
		out[email] = id
	}
	return out, rows.Err()
}

// ExistingUploadHashes returns sha1 -> upload id for content-hash
// deduplication of uploads.
func (d *DB) ExistingUploadHashes(ctx context.Context) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, "SELECT sha1, id FROM uploads WHERE sha1 IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("load upload hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			sha string
			id  int64
		)
		if err := rows.Scan(&sha, &id); err != nil {
			return nil, err
		}
		out[sha] = id
	}
	return out, rows.Err()
}

// ExistingNames streams every username and group name already present, to
// seed the dedup pool before the run.
func (d *DB) ExistingNames(ctx context.Context, fn func(name string)) error {
	for _, q := range []string{"SELECT username FROM users", "SELECT name FROM groups"} {
		rows, err := d.pool.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("load existing names: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			fn(name)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}
	return nil
}

// ImportFieldValues streams (value, owner id) pairs of import_id rows from a
// custom-field table, for the verify step.
func (d *DB) ImportFieldValues(ctx context.Context, table, ownerColumn string, fn func(original string, ownerID int64) error) error {
	rows, err := d.pool.Query(ctx,
		fmt.Sprintf("SELECT value, %s FROM %s WHERE name = 'import_id'",
			pgx.Identifier{ownerColumn}.Sanitize(), pgx.Identifier{table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("load import fields from %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			value string
			owner int64
		)
		if err := rows.Scan(&value, &owner); err != nil {
			return err
		}
		if err := fn(value, owner); err != nil {
			return err
		}
	}
	return rows.Err()
}
