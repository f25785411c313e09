package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
)

// VBulletin reads a vBulletin 4.x database. Each method returns a lazy row
// stream ordered so that dependent entities appear after their parents and
// posts appear in original chronological order (quote resolution works best
// when a quoted post is migrated before the post quoting it).
type VBulletin struct {
	db     *sql.DB
	prefix string
}

// OpenVBulletin connects to the legacy database, retrying transient
// connection failures with capped exponential backoff. prefix is the table
// name prefix (commonly "vb_" or empty).
func OpenVBulletin(ctx context.Context, dsn, prefix string) (*VBulletin, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	db.SetMaxOpenConns(4)

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, policy); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping source database: %w", err)
	}
	return &VBulletin{db: db, prefix: prefix}, nil
}

func (v *VBulletin) Close() error { return v.db.Close() }

func (v *VBulletin) table(name string) string { return v.prefix + name }

// Groups streams the non-system user groups.
func (v *VBulletin) Groups(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT usergroupid, title, description
		   FROM %s
		  ORDER BY usergroupid`, v.table("usergroup")))
}

// Users streams accounts joined with their profile fields.
func (v *VBulletin) Users(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT u.userid, u.username, u.email, u.usergroupid, u.joindate,
		        u.lastvisit, u.posts, u.usertitle, u.ipaddress, u.avatarid,
		        IFNULL(f.field1, '') AS realname
		   FROM %s u
		   LEFT JOIN %s f ON f.userid = u.userid
		  ORDER BY u.userid`, v.table("user"), v.table("userfield")))
}

// Categories streams the forum tree; parents sort before children so the
// caller can resolve parent ids while loading.
func (v *VBulletin) Categories(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT forumid, title, description, parentid, displayorder
		   FROM %s
		  ORDER BY parentid, displayorder, forumid`, v.table("forum")))
}

// Topics streams threads in creation order.
func (v *VBulletin) Topics(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT threadid, title, forumid, postuserid, dateline, views, open,
		        visible, sticky, lastpost
		   FROM %s
		  ORDER BY threadid`, v.table("thread")))
}

// Posts streams posts in original chronological order, the precondition for
// maximal quote resolution.
func (v *VBulletin) Posts(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT postid, threadid, userid, pagetext, dateline, parentid
		   FROM %s
		  ORDER BY dateline, postid`, v.table("post")))
}

// PrivateTopics streams private-message threads. Their ids share the public
// numbering scheme and are offset by the caller before mapping.
func (v *VBulletin) PrivateTopics(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT pmtextid, fromuserid, title, message, dateline, touserarray
		   FROM %s
		  ORDER BY dateline, pmtextid`, v.table("pmtext")))
}

// Attachments streams uploaded files with their binary payload reference.
func (v *VBulletin) Attachments(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT a.attachmentid, a.userid, a.contentid AS postid, a.filename,
		        a.dateline, fd.filesize, fd.filedataid
		   FROM %s a
		   JOIN %s fd ON fd.filedataid = a.filedataid
		  ORDER BY a.attachmentid`, v.table("attachment"), v.table("filedata")))
}

// Avatars streams custom avatar images with their binary payload.
func (v *VBulletin) Avatars(ctx context.Context) (Rows, error) {
	return StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT userid, filename, dateline, filedata
		   FROM %s
		  ORDER BY userid`, v.table("customavatar")))
}

// Likes streams post "thanks"/like rows when the source has the post_thanks
// add-on installed; an absent table surfaces as ErrNoTable.
func (v *VBulletin) Likes(ctx context.Context) (Rows, error) {
	rows, err := StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT postid, userid, date
		   FROM %s
		  ORDER BY date`, v.table("post_thanks")))
	return rows, noTableErr(err)
}

// Votes resolves each poll vote to the topic's first post, the closest
// anchor the target schema offers for a thread-level poll. An absent poll
// table surfaces as ErrNoTable.
func (v *VBulletin) Votes(ctx context.Context) (Rows, error) {
	rows, err := StreamQuery(ctx, v.db, fmt.Sprintf(
		`SELECT pv.userid, pv.votedate, t.firstpostid
		   FROM %s pv
		   JOIN %s t ON t.pollid = pv.pollid
		  ORDER BY pv.votedate`, v.table("pollvote"), v.table("thread")))
	return rows, noTableErr(err)
}

// noTableErr maps the driver's missing-table error (MySQL 1146) onto
// ErrNoTable so callers can tell an optional table apart from a real failure.
func noTableErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1146 {
		return fmt.Errorf("%w: %v", ErrNoTable, me)
	}
	return err
}

// ServerTime returns the source database clock, used for sanity logging.
func (v *VBulletin) ServerTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	var raw []byte
	if err := v.db.QueryRowContext(ctx, "SELECT NOW()").Scan(&raw); err != nil {
		return t, err
	}
	t, err := time.Parse("2006-01-02 15:04:05", string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse source time %q: %w", raw, err)
	}
	return t, nil
}
