package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stevermore/portage/internal/loader"
	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/schema"
	"github.com/stevermore/portage/internal/source"
	"github.com/stevermore/portage/internal/uploads"
)

// createUploads migrates attachments. Files are deduplicated by content hash
// before touching the upload store, and a reference to each stored upload is
// appended to the post that carried the attachment.
func (m *Migrator) createUploads(ctx context.Context) error {
	if m.cfg.Uploads == nil {
		m.log.Info("no upload store configured, skipping attachments")
		return nil
	}
	rows, err := m.src.Attachments(ctx)
	if err != nil {
		return err
	}

	return m.load(ctx, "uploads", rows, func(r source.Row) (loader.Record, error) {
		orig := r.Str("attachmentid")
		filename := r.Str("filename")
		path := filepath.Join(m.cfg.AttachmentsDir,
			fmt.Sprintf("%d.attach", r.Int64("filedataid")))

		sha, err := uploads.HashFile(path)
		if err != nil {
			return nil, err
		}

		// identical content already stored: spend the id, map to the
		// existing upload, persist nothing
		if existing, ok := m.uploadDedupe.Lookup(sha); ok {
			m.ids.Next(mapping.Upload)
			if err := m.maps.Put(mapping.Upload, orig, existing); err != nil {
				return nil, err
			}
			return &schema.Upload{
				Meta: schema.Meta{OriginalID: orig, SkipPersist: true, MappedID: existing},
			}, nil
		}

		ownerID := m.userOrSystem(r.Str("userid"))
		id := m.ids.Next(mapping.Upload)
		handle, err := m.cfg.Uploads.Create(ctx, id, ownerID, path, filename)
		if err != nil {
			return nil, err
		}
		if err := m.maps.Put(mapping.Upload, orig, id); err != nil {
			return nil, err
		}
		m.uploadDedupe.Record(sha, id)

		m.referenceUpload(ctx, r.Str("postid"), handle, filename)

		created := r.Time("dateline")
		return &schema.Upload{
			Meta:             schema.Meta{OriginalID: orig, MappedID: id},
			ID:               id,
			UserID:           ownerID,
			OriginalFilename: filename,
			Filesize:         r.Int64("filesize"),
			SHA1:             sha,
			URL:              handle.URL,
			Extension:        extensionOf(filename),
			CreatedAt:        created,
			UpdatedAt:        created,
		}, nil
	})
}

// referenceUpload appends the rendered upload reference to the owning post,
// when that post was migrated. Failure here degrades to a log line: the
// upload itself is already safe.
func (m *Migrator) referenceUpload(ctx context.Context, origPostID string, handle uploads.Handle, filename string) {
	postID, ok := m.maps.Get(mapping.Post, origPostID)
	if !ok {
		return
	}
	ref := m.cfg.Uploads.RenderReference(handle, filename)
	cooked := fmt.Sprintf(`<p><a href="%s">%s</a></p>`, handle.URL, filename)
	if err := m.tgt.AppendToPost(ctx, postID, ref, cooked); err != nil {
		m.log.WithError(err).WithField("post", postID).
			Warn("could not attach upload reference to post")
	}
}

// createAvatars migrates custom avatar images. The source stores the image
// bytes inline, so each row is spooled to a temporary file before hashing
// and upload.
func (m *Migrator) createAvatars(ctx context.Context) error {
	if m.cfg.Uploads == nil {
		return nil
	}
	rows, err := m.src.Avatars(ctx)
	if err != nil {
		return err
	}

	var avatars []loader.Record

	err = m.load(ctx, "avatar uploads", rows, func(r source.Row) (loader.Record, error) {
		userID, ok := m.maps.Get(mapping.User, r.Str("userid"))
		if !ok {
			return nil, nil
		}
		filename := r.Str("filename")
		data, _ := r["filedata"].([]byte)
		if len(data) == 0 {
			return nil, nil
		}

		path, err := spoolTemp(data, filename)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)

		sha, err := uploads.HashFile(path)
		if err != nil {
			return nil, err
		}
		created := r.Time("dateline")

		uploadID, known := m.uploadDedupe.Lookup(sha)
		if !known {
			uploadID = m.ids.Next(mapping.Upload)
			handle, err := m.cfg.Uploads.Create(ctx, uploadID, userID, path, filename)
			if err != nil {
				return nil, err
			}
			m.uploadDedupe.Record(sha, uploadID)

			avatars = append(avatars, &schema.UserAvatar{
				UserID:         userID,
				CustomUploadID: uploadID,
				CreatedAt:      created,
				UpdatedAt:      created,
			})
			return &schema.Upload{
				Meta:             schema.Meta{MappedID: uploadID},
				ID:               uploadID,
				UserID:           userID,
				OriginalFilename: filename,
				Filesize:         int64(len(data)),
				SHA1:             sha,
				URL:              handle.URL,
				Extension:        extensionOf(filename),
				CreatedAt:        created,
				UpdatedAt:        created,
			}, nil
		}

		avatars = append(avatars, &schema.UserAvatar{
			UserID:         userID,
			CustomUploadID: uploadID,
			CreatedAt:      created,
			UpdatedAt:      created,
		})
		return nil, nil
	})
	if err != nil {
		return err
	}

	return m.loadRecords(ctx, "user avatars", avatars)
}

func (m *Migrator) createLikes(ctx context.Context) error {
	rows, err := m.src.Likes(ctx)
	if errors.Is(err, source.ErrNoTable) {
		// the likes add-on table is optional at the source
		m.log.Info("no likes table at source, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	return m.load(ctx, "likes", rows, func(r source.Row) (loader.Record, error) {
		postID, ok := m.maps.Get(mapping.Post, r.Str("postid"))
		if !ok {
			return nil, nil
		}
		userID, ok := m.maps.Get(mapping.User, r.Str("userid"))
		if !ok {
			return nil, nil
		}
		created := r.Time("date")
		return &schema.PostAction{
			PostID:     postID,
			UserID:     userID,
			ActionType: schema.ActionLike,
			CreatedAt:  created,
			UpdatedAt:  created,
		}, nil
	})
}

// createVotes records poll votes against the owning thread's first post,
// the closest anchor the target schema offers for a thread-level poll.
func (m *Migrator) createVotes(ctx context.Context) error {
	rows, err := m.src.Votes(ctx)
	if errors.Is(err, source.ErrNoTable) {
		// polls are an optional source feature
		m.log.Info("no poll table at source, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	return m.load(ctx, "poll votes", rows, func(r source.Row) (loader.Record, error) {
		postID, ok := m.maps.Get(mapping.Post, r.Str("firstpostid"))
		if !ok {
			return nil, nil
		}
		userID, ok := m.maps.Get(mapping.User, r.Str("userid"))
		if !ok {
			return nil, nil
		}
		created := r.Time("votedate")
		return &schema.PostAction{
			PostID:     postID,
			UserID:     userID,
			ActionType: schema.ActionVote,
			CreatedAt:  created,
			UpdatedAt:  created,
		}, nil
	})
}

func extensionOf(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

func spoolTemp(data []byte, filename string) (string, error) {
	f, err := os.CreateTemp("", "portage-avatar-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("spool avatar: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("spool avatar: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
