// Package markup rewrites legacy bbcode into the target markdown dialect and
// renders it to HTML.
//
// Transformation runs in two passes. Pass 1 is an ordered chain of pure
// text-rewrite rules (tag substitution); order matters because later rules
// assume the normalization done by earlier ones. Pass 2 renders the markdown
// to HTML and expands the structured quote references produced in pass 1,
// resolving quoted users through a read-only lookup.
package markup

import (
	"regexp"
	"strings"
)

// missingBody replaces empty or whitespace-only source posts before
// transformation.
const missingBody = "(no content)"

// QuoteResolver resolves in-text cross-references against the id mapping
// built concurrently with the rewrite. Unresolvable references are not
// errors; the quote degrades to username-only form.
type QuoteResolver interface {
	// ResolvePost maps a source post id to the migrated post's number and
	// topic id.
	ResolvePost(originalID string) (postNumber int, topicID int64, ok bool)
	// ResolveUsername maps a source username to its current form, which may
	// have been suffixed during name deduplication. Unknown names are
	// returned as given.
	ResolveUsername(original string) string
}

// UserCard is the display record for a quoted user.
type UserCard struct {
	Username       string
	Name           string
	AvatarTemplate string
}

// UserLookup resolves usernames to display records for quote rendering.
// Absence is not an error.
type UserLookup interface {
	FindUser(username string) (UserCard, bool)
}

// Result is the outcome of transforming one post.
type Result struct {
	// Raw is the migrated markdown.
	Raw string
	// Cooked is the rendered, sanitized HTML.
	Cooked string
	// WordCount is computed over Raw with a word-character scan.
	WordCount int
	// HasNullByte reports that a null byte survived transformation; the
	// owning row must be skipped, the storage layer rejects such content.
	HasNullByte bool
}

// Transformer converts legacy markup. It is stateless per post; one instance
// serves a whole run.
type Transformer struct {
	resolver  QuoteResolver
	users     UserLookup
	converter Converter
	charset   *charsetNormalizer
	renderer  *renderer
}

// Options configures a Transformer.
type Options struct {
	// Converter, when non-nil, is the optional external bbcode-to-markdown
	// converter applied after the rewrite rules. Conversion failures fall
	// back to the pre-conversion text per post.
	Converter Converter
	// Charset is the declared source character set, consulted once at
	// startup. Empty means the source is already UTF-8.
	Charset string
}

// New builds a Transformer. resolver and users may not be nil; use
// NopResolver and NopUserLookup where resolution is not wanted.
func New(resolver QuoteResolver, users UserLookup, opts Options) (*Transformer, error) {
	cs, err := newCharsetNormalizer(opts.Charset)
	if err != nil {
		return nil, err
	}
	return &Transformer{
		resolver:  resolver,
		users:     users,
		converter: opts.Converter,
		charset:   cs,
		renderer:  newRenderer(users),
	}, nil
}

// Transform rewrites one post's legacy markup.
func (t *Transformer) Transform(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		raw = missingBody
	}

	text := raw
	text = normalizeWhitespace(text)
	text = rewriteCodeBlocks(text)
	text = escapeAngleBrackets(text)
	text = rewriteInlineStyles(text)
	text = rewriteMedia(text)
	text = rewriteQuotes(text, t.resolver)
	text = rewriteLists(text, t.converter != nil)
	text = convertWithFallback(t.converter, text)
	text = t.charset.normalize(text)

	cooked := t.renderer.render(text)

	return Result{
		Raw:         text,
		Cooked:      cooked,
		WordCount:   countWords(text),
		HasNullByte: strings.ContainsRune(text, 0),
	}
}

var wordRe = regexp.MustCompile(`[\w]+`)

func countWords(s string) int {
	return len(wordRe.FindAllStringIndex(s, -1))
}

// NopResolver resolves nothing: every quote degrades to username-only form.
type NopResolver struct{}

func (NopResolver) ResolvePost(string) (int, int64, bool) { return 0, 0, false }
func (NopResolver) ResolveUsername(orig string) string    { return orig }

// NopUserLookup finds no users.
type NopUserLookup struct{}

func (NopUserLookup) FindUser(string) (UserCard, bool) { return UserCard{}, false }
