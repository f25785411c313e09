package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stevermore/portage/internal/dedupe"
	"github.com/stevermore/portage/internal/loader"
	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/schema"
	"github.com/stevermore/portage/internal/source"
)

func (m *Migrator) createCategories(ctx context.Context) error {
	rows, err := m.src.Categories(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return m.load(ctx, "categories", rows, func(r source.Row) (loader.Record, error) {
		title := strings.TrimSpace(r.Str("title"))
		if title == "" {
			return nil, nil
		}
		orig := r.Str("forumid")

		// parents sort before children in the source stream, so a present
		// parent is already mapped; a missing one demotes to root.
		var parentID int64
		if pid := r.Int64("parentid"); pid > 0 {
			parentID, _ = m.maps.Get(mapping.Category, originalID(pid))
		}

		name := m.names.Reserve(dedupe.NamespaceCategory(parentID), title)
		id := m.ids.Next(mapping.Category)
		if err := m.maps.Put(mapping.Category, orig, id); err != nil {
			return nil, err
		}

		return &schema.Category{
			Meta:        schema.Meta{OriginalID: orig, MappedID: id},
			ID:          id,
			Name:        name,
			Slug:        slugFor(name),
			ParentID:    parentID,
			Position:    r.Int("displayorder"),
			Description: r.Str("description"),
			UserID:      m.cfg.SystemUserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	})
}

func slugFor(name string) string {
	slug := strings.ToLower(dedupe.Normalize(name))
	slug = strings.Map(func(r rune) rune {
		if r == '_' || r == '.' {
			return '-'
		}
		return r
	}, slug)
	return strings.Trim(slug, "-")
}

func (m *Migrator) createTopics(ctx context.Context) error {
	rows, err := m.src.Topics(ctx)
	if err != nil {
		return err
	}

	return m.load(ctx, "topics", rows, func(r source.Row) (loader.Record, error) {
		orig := r.Str("threadid")

		categoryID, _ := m.maps.Get(mapping.Category, r.Str("forumid"))
		userID := m.userOrSystem(r.Str("postuserid"))
		created := r.Time("dateline")
		lastPosted := r.Time("lastpost")
		if lastPosted.IsZero() {
			lastPosted = created
		}

		id := m.ids.Next(mapping.Topic)
		if err := m.maps.Put(mapping.Topic, orig, id); err != nil {
			return nil, err
		}

		return &schema.Topic{
			Meta:         schema.Meta{OriginalID: orig, MappedID: id},
			ID:           id,
			Title:        topicTitle(r.Str("title")),
			CategoryID:   categoryID,
			UserID:       userID,
			Views:        r.Int("views"),
			Closed:       !r.Bool("open"),
			Visible:      r.Bool("visible"),
			Pinned:       r.Bool("sticky"),
			Archetype:    schema.ArchetypeRegular,
			CreatedAt:    created,
			UpdatedAt:    created,
			BumpedAt:     lastPosted,
			LastPostedAt: lastPosted,
		}, nil
	})
}

// topicTitle tidies a legacy thread title for the target's constraints.
func topicTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "(untitled)"
	}
	if len(title) > 255 {
		// cut on a rune boundary, not mid-sequence
		cut := 255
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut]
	}
	return title
}

func (m *Migrator) createPosts(ctx context.Context) error {
	rows, err := m.src.Posts(ctx)
	if err != nil {
		return err
	}

	return m.load(ctx, "posts", rows, func(r source.Row) (loader.Record, error) {
		orig := r.Str("postid")

		topicID, ok := m.maps.Get(mapping.Topic, r.Str("threadid"))
		if !ok {
			// orphaned post: its thread was deleted at the source
			return nil, nil
		}

		id := m.ids.Next(mapping.Post)
		res := m.markup.Transform(r.Str("pagetext"))
		if res.HasNullByte {
			// storage rejects null bytes; drop the row, keep the run going
			return &schema.Post{
				Meta: schema.Meta{OriginalID: orig, SkipPersist: true},
			}, nil
		}

		number := m.posts.Next(topicID)
		if err := m.maps.Put(mapping.Post, orig, id); err != nil {
			return nil, err
		}
		m.postRefs[id] = postRef{number: number, topicID: topicID}

		var replyTo int
		if parent := r.Int64("parentid"); parent > 0 {
			if parentTarget, ok := m.maps.Get(mapping.Post, originalID(parent)); ok {
				if ref, ok := m.postRefs[parentTarget]; ok && ref.topicID == topicID {
					replyTo = ref.number
				}
			}
		}

		created := r.Time("dateline")
		return &schema.Post{
			Meta:              schema.Meta{OriginalID: orig, MappedID: id},
			ID:                id,
			TopicID:           topicID,
			UserID:            m.userOrSystem(r.Str("userid")),
			PostNumber:        number,
			Raw:               res.Raw,
			Cooked:            res.Cooked,
			ReplyToPostNumber: replyTo,
			WordCount:         res.WordCount,
			CreatedAt:         created,
			UpdatedAt:         created,
		}, nil
	})
}

// createPrivateMessages migrates the private-message table into
// private-archetype topics with a single first post each. The source shares
// one numbering scheme for public and private content, so private original
// ids are shifted into the secondary partition by the fixed offset.
func (m *Migrator) createPrivateMessages(ctx context.Context) error {
	// public ids reaching the private partition would collide with shifted ones
	if hw := m.maps.HighWater(mapping.Topic); hw >= mapping.PrivateOffset {
		return fmt.Errorf("topic original id %d overlaps the private partition", hw)
	}
	if hw := m.maps.HighWater(mapping.Post); hw >= mapping.PrivateOffset {
		return fmt.Errorf("post original id %d overlaps the private partition", hw)
	}

	rows, err := m.src.PrivateTopics(ctx)
	if err != nil {
		return err
	}

	var posts []loader.Record

	err = m.load(ctx, "private topics", rows, func(r source.Row) (loader.Record, error) {
		orig := originalID(r.Int64("pmtextid") + mapping.PrivateOffset)
		userID := m.userOrSystem(r.Str("fromuserid"))
		created := r.Time("dateline")

		topicID := m.ids.Next(mapping.Topic)
		if err := m.maps.Put(mapping.Topic, orig, topicID); err != nil {
			return nil, err
		}

		res := m.markup.Transform(r.Str("message"))
		if !res.HasNullByte {
			postID := m.ids.Next(mapping.Post)
			if err := m.maps.Put(mapping.Post, orig, postID); err != nil {
				return nil, err
			}
			number := m.posts.Next(topicID)
			m.postRefs[postID] = postRef{number: number, topicID: topicID}
			posts = append(posts, &schema.Post{
				Meta:       schema.Meta{OriginalID: orig, MappedID: postID},
				ID:         postID,
				TopicID:    topicID,
				UserID:     userID,
				PostNumber: number,
				Raw:        res.Raw,
				Cooked:     res.Cooked,
				WordCount:  res.WordCount,
				CreatedAt:  created,
				UpdatedAt:  created,
			})
		}

		return &schema.Topic{
			Meta:         schema.Meta{OriginalID: orig, MappedID: topicID},
			ID:           topicID,
			Title:        topicTitle(r.Str("title")),
			UserID:       userID,
			Visible:      true,
			Archetype:    schema.ArchetypePrivateMessage,
			CreatedAt:    created,
			UpdatedAt:    created,
			BumpedAt:     created,
			LastPostedAt: created,
		}, nil
	})
	if err != nil {
		return err
	}

	return m.loadRecords(ctx, "private posts", posts)
}

func (m *Migrator) userOrSystem(origUserID string) int64 {
	if id, ok := m.maps.Get(mapping.User, origUserID); ok {
		return id
	}
	return m.cfg.SystemUserID
}
