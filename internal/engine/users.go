package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/stevermore/portage/internal/dedupe"
	"github.com/stevermore/portage/internal/loader"
	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/schema"
	"github.com/stevermore/portage/internal/source"
)

// UserHistory action code for a username changed during migration.
const actionUsernameChanged = 20

func (m *Migrator) createGroups(ctx context.Context) error {
	rows, err := m.src.Groups(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return m.load(ctx, "groups", rows, func(r source.Row) (loader.Record, error) {
		title := strings.TrimSpace(r.Str("title"))
		if title == "" {
			return nil, nil
		}
		orig := r.Str("usergroupid")

		name := m.names.Reserve(dedupe.NamespaceUsers, title)
		id := m.ids.Next(mapping.Group)
		if err := m.maps.Put(mapping.Group, orig, id); err != nil {
			return nil, err
		}

		return &schema.Group{
			Meta:      schema.Meta{OriginalID: orig, MappedID: id},
			ID:        id,
			Name:      name,
			FullName:  title,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	})
}

func (m *Migrator) createUsers(ctx context.Context) error {
	rows, err := m.src.Users(ctx)
	if err != nil {
		return err
	}

	var (
		emails      []loader.Record
		stats       []loader.Record
		options     []loader.Record
		memberships []loader.Record
		histories   []loader.Record
	)

	err = m.load(ctx, "users", rows, func(r source.Row) (loader.Record, error) {
		orig := r.Str("userid")
		email := strings.ToLower(strings.TrimSpace(r.Str("email")))

		// duplicate address: collapse onto the account that owns it. The id
		// is spent anyway to keep allocation deterministic.
		if email != "" {
			if existing, ok := m.emailIndex[email]; ok {
				m.ids.Next(mapping.User)
				if err := m.maps.Put(mapping.User, orig, existing); err != nil {
					return nil, err
				}
				return &schema.User{
					Meta: schema.Meta{OriginalID: orig, SkipPersist: true, MappedID: existing},
				}, nil
			}
		}

		originalUsername := r.Str("username")
		username := m.names.Reserve(dedupe.NamespaceUsers, originalUsername)
		id := m.ids.Next(mapping.User)
		if err := m.maps.Put(mapping.User, orig, id); err != nil {
			return nil, err
		}
		if email != "" {
			m.emailIndex[email] = id
		}

		joined := r.Time("joindate")
		if joined.IsZero() {
			joined = time.Now().UTC()
		}

		if username != originalUsername {
			m.usernameRemap[originalUsername] = username
			histories = append(histories, &schema.UserHistory{
				Action:       actionUsernameChanged,
				ActingUserID: m.cfg.SystemUserID,
				TargetUserID: id,
				Details:      originalUsername + " -> " + username,
				CreatedAt:    joined,
				UpdatedAt:    joined,
			})
		}

		if email != "" {
			emails = append(emails, &schema.UserEmail{
				UserID:    id,
				Email:     email,
				Primary:   true,
				CreatedAt: joined,
				UpdatedAt: joined,
			})
		}
		stats = append(stats, &schema.UserStat{
			UserID:    id,
			PostCount: r.Int("posts"),
			NewSince:  joined,
		})
		options = append(options, &schema.UserOption{
			UserID:     id,
			EmailLevel: 1,
		})
		if groupID, ok := m.maps.Get(mapping.Group, r.Str("usergroupid")); ok {
			memberships = append(memberships, &schema.GroupUser{
				GroupID:   groupID,
				UserID:    id,
				CreatedAt: joined,
				UpdatedAt: joined,
			})
		}

		return &schema.User{
			Meta:             schema.Meta{OriginalID: orig, MappedID: id},
			ID:               id,
			Username:         username,
			OriginalUsername: originalUsername,
			Name:             r.Str("realname"),
			Active:           true,
			Admin:            r.Int64("usergroupid") == 6, // vBulletin admin group
			Moderator:        r.Int64("usergroupid") == 7,
			TrustLevel:       trustLevelFor(r.Int("posts")),
			LastSeenAt:       r.Time("lastvisit"),
			CreatedAt:        joined,
			UpdatedAt:        joined,
		}, nil
	})
	if err != nil {
		return err
	}

	for _, aux := range []struct {
		label   string
		records []loader.Record
	}{
		{"user emails", emails},
		{"user stats", stats},
		{"user options", options},
		{"group memberships", memberships},
		{"username histories", histories},
	} {
		if err := m.loadRecords(ctx, aux.label, aux.records); err != nil {
			return err
		}
	}
	return nil
}

// trustLevelFor grants long-time posters a head start instead of making
// every migrated veteran re-earn basic privileges.
func trustLevelFor(posts int) int {
	switch {
	case posts >= 100:
		return 2
	case posts >= 10:
		return 1
	default:
		return 0
	}
}

// originalID formats a numeric source id the way the mapping table keys it.
func originalID(n int64) string {
	return strconv.FormatInt(n, 10)
}
