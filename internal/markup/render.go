package markup

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	mdhtml "github.com/yuin/goldmark/renderer/html"
)

// renderer produces the stored HTML for a post: markdown render, sanitize,
// then expansion of the structured quote references left by pass 1.
type renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	users  UserLookup
}

func newRenderer(users UserLookup) *renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("aside", "blockquote")
	policy.AllowAttrs("class", "data-username", "data-post", "data-topic").OnElements("aside")
	policy.AllowAttrs("class", "width", "height").OnElements("img")
	policy.AllowElements("div")
	policy.AllowAttrs("class").OnElements("div")

	return &renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(mdhtml.WithUnsafe()),
		),
		policy: policy,
		users:  users,
	}
}

var (
	// goldmark and the sanitizer may escape the quote character either way;
	// usernames may contain commas, so match up to the ", post:" marker or
	// the closing quote rather than excluding characters
	quoteStructRe = regexp.MustCompile(`\[quote=(?:"|&quot;|&#34;)(.+?), post:(\d+), topic:(\d+)(?:"|&quot;|&#34;)\]`)
	quoteUserRe   = regexp.MustCompile(`\[quote=(?:"|&quot;|&#34;)(.+?)(?:"|&quot;|&#34;)\]`)
	quoteBareRe   = regexp.MustCompile(`\[quote\]`)
	quoteEndRe    = regexp.MustCompile(`\[/quote\]`)
)

func (r *renderer) render(raw string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(raw), &buf); err != nil {
		// render failure leaves a text-only fallback rather than no body
		return "<p>" + html.EscapeString(raw) + "</p>"
	}

	cooked := r.policy.Sanitize(buf.String())
	cooked = r.expandQuotes(cooked)

	// the storage layer rejects null bytes
	return strings.ReplaceAll(cooked, "\x00", "")
}

// expandQuotes replaces the structured quote placeholders with quote blocks,
// decorating each with the quoted user's avatar and a title line when the
// user still exists, and falling back to the bare username when not.
func (r *renderer) expandQuotes(cooked string) string {
	cooked = quoteStructRe.ReplaceAllString(cooked,
		`<aside class="quote" data-username="$1" data-post="$2" data-topic="$3"><blockquote>`)
	cooked = quoteUserRe.ReplaceAllString(cooked,
		`<aside class="quote" data-username="$1"><blockquote>`)
	cooked = quoteBareRe.ReplaceAllString(cooked, `<aside class="quote"><blockquote>`)
	cooked = quoteEndRe.ReplaceAllString(cooked, `</blockquote></aside>`)

	if !strings.Contains(cooked, `<aside class="quote"`) {
		return cooked
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cooked))
	if err != nil {
		return cooked
	}

	doc.Find("aside.quote").Each(func(_ int, sel *goquery.Selection) {
		username, ok := sel.Attr("data-username")
		if !ok || username == "" {
			return
		}
		title := r.quoteTitle(username)
		sel.PrependHtml(title)
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return cooked
	}
	return out
}

// quoteTitle builds the title line above a quote block.
func (r *renderer) quoteTitle(username string) string {
	card, ok := r.users.FindUser(username)
	if !ok {
		return fmt.Sprintf(`<div class="title">%s:</div>`, html.EscapeString(username))
	}
	display := card.Username
	if card.Name != "" {
		display = card.Name
	}
	avatar := ""
	if card.AvatarTemplate != "" {
		src := strings.ReplaceAll(card.AvatarTemplate, "{size}", "20")
		avatar = fmt.Sprintf(`<img alt="" width="20" height="20" src="%s" class="avatar"> `, src)
	}
	return fmt.Sprintf(`<div class="title">%s%s:</div>`, avatar, html.EscapeString(display))
}
