package schema

import "time"

// Group is a user group in the target schema.
type Group struct {
	Meta
	ID        int64
	Name      string
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g *Group) Table() string { return "groups" }

func (g *Group) Columns() []string {
	return []string{"id", "name", "full_name", "created_at", "updated_at"}
}

func (g *Group) Values() []any {
	return []any{g.ID, g.Name, nullStr(g.FullName), g.CreatedAt, g.UpdatedAt}
}

func (g *Group) CustomFields() CustomFieldSpec {
	return CustomFieldSpec{Table: "group_custom_fields", OwnerColumn: "group_id"}
}

// User is a forum account.
type User struct {
	Meta
	ID int64
	// Username is the deduplicated name; OriginalUsername preserves the
	// source spelling in the custom-field side channel.
	Username         string
	OriginalUsername string
	Name             string
	Active           bool
	Admin            bool
	Moderator        bool
	TrustLevel       int
	LastSeenAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) Table() string { return "users" }

func (u *User) Columns() []string {
	return []string{"id", "username", "username_lower", "name", "active", "admin",
		"moderator", "trust_level", "last_seen_at", "created_at", "updated_at"}
}

func (u *User) Values() []any {
	return []any{u.ID, u.Username, lower(u.Username), nullStr(u.Name), u.Active,
		u.Admin, u.Moderator, u.TrustLevel, nullTime(u.LastSeenAt), u.CreatedAt, u.UpdatedAt}
}

func (u *User) CustomFields() CustomFieldSpec {
	return CustomFieldSpec{Table: "user_custom_fields", OwnerColumn: "user_id"}
}

// ExtraImportFields adds the original username to the side channel.
func (u *User) ExtraImportFields() map[string]string {
	if u.OriginalUsername == "" {
		return nil
	}
	return map[string]string{FieldImportUsername: u.OriginalUsername}
}

// UserEmail is an address attached to a user; exactly one is primary.
type UserEmail struct {
	Meta
	UserID    int64
	Email     string
	Primary   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *UserEmail) Table() string { return "user_emails" }

func (e *UserEmail) Columns() []string {
	return []string{"user_id", "email", "primary", "created_at", "updated_at"}
}

func (e *UserEmail) Values() []any {
	return []any{e.UserID, e.Email, e.Primary, e.CreatedAt, e.UpdatedAt}
}

// UserStat is the denormalized per-user counter row.
type UserStat struct {
	Meta
	UserID     int64
	PostCount  int
	TopicCount int
	NewSince   time.Time
}

func (s *UserStat) Table() string { return "user_stats" }

func (s *UserStat) Columns() []string {
	return []string{"user_id", "post_count", "topic_count", "new_since"}
}

func (s *UserStat) Values() []any {
	return []any{s.UserID, s.PostCount, s.TopicCount, s.NewSince}
}

// UserOption holds per-user settings the migration carries over.
type UserOption struct {
	Meta
	UserID         int64
	EmailLevel     int
	Timezone       string
	HideProfile    bool
}

func (o *UserOption) Table() string { return "user_options" }

func (o *UserOption) Columns() []string {
	return []string{"user_id", "email_level", "timezone", "hide_profile"}
}

func (o *UserOption) Values() []any {
	return []any{o.UserID, o.EmailLevel, nullStr(o.Timezone), o.HideProfile}
}

// UserAvatar links a user to their uploaded avatar image.
type UserAvatar struct {
	Meta
	UserID         int64
	CustomUploadID int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *UserAvatar) Table() string { return "user_avatars" }

func (a *UserAvatar) Columns() []string {
	return []string{"user_id", "custom_upload_id", "created_at", "updated_at"}
}

func (a *UserAvatar) Values() []any {
	return []any{a.UserID, nullID(a.CustomUploadID), a.CreatedAt, a.UpdatedAt}
}

// UserHistory records a staff action applied during migration, such as a
// forced username change.
type UserHistory struct {
	Meta
	Action       int
	ActingUserID int64
	TargetUserID int64
	Details      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (h *UserHistory) Table() string { return "user_histories" }

func (h *UserHistory) Columns() []string {
	return []string{"action", "acting_user_id", "target_user_id", "details",
		"created_at", "updated_at"}
}

func (h *UserHistory) Values() []any {
	return []any{h.Action, h.ActingUserID, h.TargetUserID, nullStr(h.Details),
		h.CreatedAt, h.UpdatedAt}
}

// Category is a forum/subforum. Parent must already be migrated: ParentID is
// a target id, resolved by the caller before the record is finalized.
type Category struct {
	Meta
	ID          int64
	Name        string
	Slug        string
	ParentID    int64
	Position    int
	Description string
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Category) Table() string { return "categories" }

func (c *Category) Columns() []string {
	return []string{"id", "name", "slug", "parent_category_id", "position",
		"description", "user_id", "created_at", "updated_at"}
}

func (c *Category) Values() []any {
	return []any{c.ID, c.Name, c.Slug, nullID(c.ParentID), c.Position,
		nullStr(c.Description), c.UserID, c.CreatedAt, c.UpdatedAt}
}

func (c *Category) CustomFields() CustomFieldSpec {
	return CustomFieldSpec{Table: "category_custom_fields", OwnerColumn: "category_id"}
}

// Topic is a thread. Private-message topics carry no category.
type Topic struct {
	Meta
	ID                int64
	Title             string
	CategoryID        int64
	UserID            int64
	Views             int
	Closed            bool
	Visible           bool
	Pinned            bool
	Archetype         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	BumpedAt          time.Time
	LastPostedAt      time.Time
	HighestPostNumber int
}

// Archetypes for Topic.Archetype.
const (
	ArchetypeRegular        = "regular"
	ArchetypePrivateMessage = "private_message"
)

func (t *Topic) Table() string { return "topics" }

func (t *Topic) Columns() []string {
	return []string{"id", "title", "category_id", "user_id", "views", "closed",
		"visible", "pinned_globally", "archetype", "created_at", "updated_at",
		"bumped_at", "last_posted_at", "highest_post_number"}
}

func (t *Topic) Values() []any {
	return []any{t.ID, t.Title, nullID(t.CategoryID), t.UserID, t.Views, t.Closed,
		t.Visible, t.Pinned, t.Archetype, t.CreatedAt, t.UpdatedAt,
		t.BumpedAt, t.LastPostedAt, t.HighestPostNumber}
}

func (t *Topic) CustomFields() CustomFieldSpec {
	return CustomFieldSpec{Table: "topic_custom_fields", OwnerColumn: "topic_id"}
}

// Post is one message within a topic. Raw is the migrated markdown, Cooked
// the rendered HTML.
type Post struct {
	Meta
	ID                int64
	TopicID           int64
	UserID            int64
	PostNumber        int
	Raw               string
	Cooked            string
	ReplyToPostNumber int
	WordCount         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Post) Table() string { return "posts" }

func (p *Post) Columns() []string {
	return []string{"id", "topic_id", "user_id", "post_number", "raw", "cooked",
		"reply_to_post_number", "word_count", "created_at", "updated_at"}
}

func (p *Post) Values() []any {
	return []any{p.ID, p.TopicID, p.UserID, p.PostNumber, p.Raw, p.Cooked,
		nullInt(p.ReplyToPostNumber), p.WordCount, p.CreatedAt, p.UpdatedAt}
}

func (p *Post) CustomFields() CustomFieldSpec {
	return CustomFieldSpec{Table: "post_custom_fields", OwnerColumn: "post_id"}
}

// Upload is a migrated binary attachment reference.
type Upload struct {
	Meta
	ID               int64
	UserID           int64
	OriginalFilename string
	Filesize         int64
	SHA1             string
	URL              string
	Extension        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *Upload) Table() string { return "uploads" }

func (u *Upload) Columns() []string {
	return []string{"id", "user_id", "original_filename", "filesize", "sha1",
		"url", "extension", "created_at", "updated_at"}
}

func (u *Upload) Values() []any {
	return []any{u.ID, u.UserID, u.OriginalFilename, u.Filesize, u.SHA1,
		u.URL, nullStr(u.Extension), u.CreatedAt, u.UpdatedAt}
}

func (u *Upload) CustomFields() CustomFieldSpec {
	return CustomFieldSpec{Table: "upload_custom_fields", OwnerColumn: "upload_id"}
}

// PostAction is a reaction applied to a post (like, bookmark, flag).
type PostAction struct {
	Meta
	PostID     int64
	UserID     int64
	ActionType int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// post_action_type ids for migrated reactions.
const (
	ActionLike = 2
	ActionVote = 5
)

func (a *PostAction) Table() string { return "post_actions" }

func (a *PostAction) Columns() []string {
	return []string{"post_id", "user_id", "post_action_type_id",
		"created_at", "updated_at"}
}

func (a *PostAction) Values() []any {
	return []any{a.PostID, a.UserID, a.ActionType, a.CreatedAt, a.UpdatedAt}
}

// GroupUser links a user into a group.
type GroupUser struct {
	Meta
	GroupID   int64
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g *GroupUser) Table() string { return "group_users" }

func (g *GroupUser) Columns() []string {
	return []string{"group_id", "user_id", "created_at", "updated_at"}
}

func (g *GroupUser) Values() []any {
	return []any{g.GroupID, g.UserID, g.CreatedAt, g.UpdatedAt}
}
