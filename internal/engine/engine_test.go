package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/markup"
	"github.com/stevermore/portage/internal/source"
)

type fakeSource struct {
	groups      []source.Row
	users       []source.Row
	categories  []source.Row
	topics      []source.Row
	posts       []source.Row
	private     []source.Row
	attachments []source.Row
	avatars     []source.Row
	likes       []source.Row
	votes       []source.Row
}

func (f *fakeSource) Groups(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.groups...), nil
}
func (f *fakeSource) Users(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.users...), nil
}
func (f *fakeSource) Categories(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.categories...), nil
}
func (f *fakeSource) Topics(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.topics...), nil
}
func (f *fakeSource) Posts(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.posts...), nil
}
func (f *fakeSource) PrivateTopics(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.private...), nil
}
func (f *fakeSource) Attachments(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.attachments...), nil
}
func (f *fakeSource) Avatars(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.avatars...), nil
}
func (f *fakeSource) Likes(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.likes...), nil
}
func (f *fakeSource) Votes(context.Context) (source.Rows, error) {
	return source.NewSliceRows(f.votes...), nil
}

type fakeTarget struct {
	backend   *mapping.MemoryBackend
	copies    map[string][][]any
	columns   map[string][]string
	sequences map[mapping.EntityType]int64
	emails    map[string]int64
	repaired  bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		backend:   mapping.NewMemoryBackend(),
		copies:    make(map[string][][]any),
		columns:   make(map[string][]string),
		sequences: make(map[mapping.EntityType]int64),
		emails:    make(map[string]int64),
	}
}

func (f *fakeTarget) Copy(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.copies[table] = append(f.copies[table], rows...)
	f.columns[table] = columns
	return int64(len(rows)), nil
}

func (f *fakeTarget) MaxID(context.Context, mapping.EntityType) (int64, error) { return 0, nil }

func (f *fakeTarget) SetSequence(_ context.Context, t mapping.EntityType, v int64) error {
	f.sequences[t] = v
	return nil
}

func (f *fakeTarget) Load(ctx context.Context, fn func(mapping.Entry) error) error {
	return f.backend.Load(ctx, fn)
}

func (f *fakeTarget) Append(ctx context.Context, entries []mapping.Entry) error {
	return f.backend.Append(ctx, entries)
}

func (f *fakeTarget) HighestPostNumbers(context.Context, func(int64, int) error) error { return nil }

func (f *fakeTarget) RepairPostNumbers(context.Context) (int64, error) {
	f.repaired = true
	return 0, nil
}

func (f *fakeTarget) FindUser(string) (markup.UserCard, bool) { return markup.UserCard{}, false }

func (f *fakeTarget) EnsureMappingTable(context.Context) error { return nil }

func (f *fakeTarget) ExistingEmails(context.Context) (map[string]int64, error) {
	return f.emails, nil
}

func (f *fakeTarget) ExistingUploadHashes(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (f *fakeTarget) ExistingNames(context.Context, func(string)) error { return nil }

func (f *fakeTarget) AppendToPost(context.Context, int64, string, string) error { return nil }

func quietConfig() Config {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return Config{Log: log}
}

func (f *fakeTarget) mappingOf(t *testing.T, typ mapping.EntityType, orig string) int64 {
	t.Helper()
	for _, e := range f.backend.Entries() {
		if e.Type == typ && e.OriginalID == orig {
			return e.TargetID
		}
	}
	t.Fatalf("no mapping for %s %s", typ, orig)
	return 0
}

func TestRunEndToEnd(t *testing.T) {
	src := &fakeSource{
		groups: []source.Row{
			{"usergroupid": int64(9), "title": "Veterans"},
		},
		users: []source.Row{
			{"userid": int64(1), "username": "alice", "email": "a@x.com",
				"usergroupid": int64(9), "joindate": int64(1200000000), "posts": int64(500)},
			{"userid": int64(2), "username": "bob", "email": "b@x.com",
				"joindate": int64(1200000100), "posts": int64(3)},
			// same address as user 1 with a different original id
			{"userid": int64(3), "username": "alice2", "email": "A@X.com",
				"joindate": int64(1200000200), "posts": int64(1)},
		},
		categories: []source.Row{
			{"forumid": int64(10), "title": "General", "parentid": int64(-1), "displayorder": int64(1)},
			{"forumid": int64(11), "title": "Offtopic", "parentid": int64(10), "displayorder": int64(2)},
		},
		topics: []source.Row{
			{"threadid": int64(500), "title": "Hello world", "forumid": int64(10),
				"postuserid": int64(1), "dateline": int64(1300000000), "open": int64(1),
				"visible": int64(1), "lastpost": int64(1300000500)},
		},
		posts: []source.Row{
			{"postid": int64(42), "threadid": int64(500), "userid": int64(1),
				"pagetext": "[b]first[/b]", "dateline": int64(1300000000)},
			{"postid": int64(43), "threadid": int64(500), "userid": int64(2),
				"pagetext": "[quote=alice;42]first[/quote] reply", "dateline": int64(1300000100)},
		},
		likes: []source.Row{
			{"postid": int64(42), "userid": int64(2), "date": int64(1300000200)},
		},
		votes: []source.Row{
			{"userid": int64(1), "votedate": int64(1300000300), "firstpostid": int64(42)},
		},
	}
	tgt := newFakeTarget()

	m, err := New(quietConfig(), src, tgt)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background()))

	// duplicate email collapsed: two user rows persisted, three ids mapped
	assert.Len(t, tgt.copies["users"], 2)
	aliceID := tgt.mappingOf(t, mapping.User, "1")
	dupID := tgt.mappingOf(t, mapping.User, "3")
	assert.Equal(t, aliceID, dupID, "both original ids map to one target user")

	// mapping matches the import_id side channel
	importIDs := map[string]int64{}
	for _, row := range tgt.copies["user_custom_fields"] {
		if row[1] == "import_id" {
			importIDs[row[2].(string)] = row[0].(int64)
		}
	}
	assert.Equal(t, aliceID, importIDs["1"])
	assert.Equal(t, aliceID, importIDs["3"])
	assert.Equal(t, tgt.mappingOf(t, mapping.User, "2"), importIDs["2"])

	// child category resolved its parent's target id
	parentID := tgt.mappingOf(t, mapping.Category, "10")
	var childParent any
	for _, row := range tgt.copies["categories"] {
		if row[1] == "Offtopic" {
			childParent = row[3]
		}
	}
	assert.Equal(t, parentID, childParent)

	// posts numbered sequentially within the topic
	require.Len(t, tgt.copies["posts"], 2)
	assert.Equal(t, 1, tgt.copies["posts"][0][3])
	assert.Equal(t, 2, tgt.copies["posts"][1][3])

	// the second post's quote resolved against the first post's mapping
	topicID := tgt.mappingOf(t, mapping.Topic, "500")
	cooked := tgt.copies["posts"][1][5].(string)
	assert.Contains(t, cooked, `data-post="1"`)
	assert.Contains(t, tgt.copies["posts"][1][4].(string),
		`[quote="alice, post:1, topic:`+itoa(topicID)+`"]`)

	// group membership flowed through the group mapping
	require.Len(t, tgt.copies["group_users"], 1)
	assert.Equal(t, tgt.mappingOf(t, mapping.Group, "9"), tgt.copies["group_users"][0][0])

	// like and vote both land on the first post as post actions
	require.Len(t, tgt.copies["post_actions"], 2)
	firstPost := tgt.mappingOf(t, mapping.Post, "42")
	assert.Equal(t, firstPost, tgt.copies["post_actions"][0][0])
	assert.Equal(t, 2, tgt.copies["post_actions"][0][2])
	assert.Equal(t, 5, tgt.copies["post_actions"][1][2])

	// allocator state pushed back for every touched type
	assert.Equal(t, int64(3), tgt.sequences[mapping.User])
	assert.True(t, tgt.repaired)
}

func TestRunCollapsesOntoExistingAccount(t *testing.T) {
	src := &fakeSource{
		users: []source.Row{
			{"userid": int64(7), "username": "carol", "email": "c@x.com",
				"joindate": int64(1200000000)},
		},
	}
	tgt := newFakeTarget()
	tgt.emails["c@x.com"] = 55 // account from a previous run

	m, err := New(quietConfig(), src, tgt)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background()))

	assert.Empty(t, tgt.copies["users"], "no new user row")
	assert.Equal(t, int64(55), tgt.mappingOf(t, mapping.User, "7"))

	// the skip-marked row still lands in the side channel
	found := false
	for _, row := range tgt.copies["user_custom_fields"] {
		if row[1] == "import_id" && row[2] == "7" {
			found = true
			assert.Equal(t, int64(55), row[0])
		}
	}
	assert.True(t, found)
}

func TestRunRejectsConflictingRemap(t *testing.T) {
	tgt := newFakeTarget()
	require.NoError(t, tgt.backend.Append(context.Background(), []mapping.Entry{
		{OriginalID: "7", Type: mapping.User, TargetID: 99},
	}))

	src := &fakeSource{
		users: []source.Row{
			{"userid": int64(7), "username": "carol", "email": "c@x.com",
				"joindate": int64(1200000000)},
		},
	}

	m, err := New(quietConfig(), src, tgt)
	require.NoError(t, err)

	err = m.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, mapping.ErrDuplicateMapping)
}

func TestPrivateMessagesUseOffsetPartition(t *testing.T) {
	src := &fakeSource{
		private: []source.Row{
			{"pmtextid": int64(12), "fromuserid": int64(1), "title": "psst",
				"message": "secret", "dateline": int64(1300000000)},
		},
	}
	tgt := newFakeTarget()

	m, err := New(quietConfig(), src, tgt)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background()))

	offsetID := itoa(12 + mapping.PrivateOffset)
	topicID := tgt.mappingOf(t, mapping.Topic, offsetID)
	require.Len(t, tgt.copies["topics"], 1)
	assert.Equal(t, topicID, tgt.copies["topics"][0][0])
	assert.Equal(t, "private_message", tgt.copies["topics"][0][8])

	require.Len(t, tgt.copies["posts"], 1)
	assert.Equal(t, 1, tgt.copies["posts"][0][3], "first post in the private topic")
}

func itoa(n int64) string {
	return originalID(n)
}

type erringSource struct {
	*fakeSource
	likesErr error
	votesErr error
}

func (e *erringSource) Likes(ctx context.Context) (source.Rows, error) {
	if e.likesErr != nil {
		return nil, e.likesErr
	}
	return e.fakeSource.Likes(ctx)
}

func (e *erringSource) Votes(ctx context.Context) (source.Rows, error) {
	if e.votesErr != nil {
		return nil, e.votesErr
	}
	return e.fakeSource.Votes(ctx)
}

func TestRunToleratesAbsentOptionalTables(t *testing.T) {
	src := &erringSource{
		fakeSource: &fakeSource{},
		likesErr:   fmt.Errorf("%w: post_thanks", source.ErrNoTable),
		votesErr:   fmt.Errorf("%w: pollvote", source.ErrNoTable),
	}
	tgt := newFakeTarget()

	m, err := New(quietConfig(), src, tgt)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background()))
	assert.Empty(t, tgt.copies["post_actions"])
}

func TestRunPropagatesLikeSourceFailure(t *testing.T) {
	src := &erringSource{
		fakeSource: &fakeSource{},
		likesErr:   errors.New("connection reset by peer"),
	}
	tgt := newFakeTarget()

	m, err := New(quietConfig(), src, tgt)
	require.NoError(t, err)

	err = m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestTopicTitleTruncatesOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short kept", "hello", "hello"},
		{"blank replaced", "  \t ", "(untitled)"},
		{"ascii capped", strings.Repeat("x", 300), strings.Repeat("x", 255)},
		// 85 three-byte runes are 255 bytes; one more must not be split
		{"multibyte capped", strings.Repeat("日", 86), strings.Repeat("日", 85)},
		{"rune straddles cap", strings.Repeat("x", 254) + "éz", strings.Repeat("x", 254)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topicTitle(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
