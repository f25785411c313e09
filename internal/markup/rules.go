package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// Pass-1 rewrite rules. Each rule is a pure string transformation; the chain
// order in Transformer.Transform is load-bearing.

var escapedNewlineRe = regexp.MustCompile(`\\n`)

// normalizeWhitespace turns escaped and carriage-return line endings into
// plain newlines. Some exports store literal backslash-n sequences.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return escapedNewlineRe.ReplaceAllString(s, "\n")
}

var (
	codeRe      = regexp.MustCompile(`(?is)\[code\]\n?(.*?)\n?\[/code\]`)
	phpRe       = regexp.MustCompile(`(?is)\[php\]\n?(.*?)\n?\[/php\]`)
	htmlTagRe   = regexp.MustCompile(`(?is)\[html\]\n?(.*?)\n?\[/html\]`)
	highlightRe = regexp.MustCompile(`(?is)\[highlight=([a-z0-9+#-]+)\]\n?(.*?)\n?\[/highlight\]`)
)

// rewriteCodeBlocks converts code/php/html/highlight regions to fenced code
// blocks, carrying the language hint when the source declares one.
func rewriteCodeBlocks(s string) string {
	s = highlightRe.ReplaceAllString(s, "\n```$1\n$2\n```\n")
	s = phpRe.ReplaceAllString(s, "\n```php\n$1\n```\n")
	s = htmlTagRe.ReplaceAllString(s, "\n```html\n$1\n```\n")
	s = codeRe.ReplaceAllString(s, "\n```\n$1\n```\n")
	return s
}

var (
	fencedRe = regexp.MustCompile("(?s)```.*?```")
	inlineRe = regexp.MustCompile("`[^`\n]+`")
)

// escapeAngleBrackets HTML-escapes angle brackets outside code spans. Code
// content is protected with sentinel substitutions, escaped text keeps its
// meaning, then the protected spans are restored verbatim.
func escapeAngleBrackets(s string) string {
	var saved []string
	protect := func(m string) string {
		saved = append(saved, m)
		return fmt.Sprintf("￹%d￻", len(saved)-1)
	}
	s = fencedRe.ReplaceAllStringFunc(s, protect)
	s = inlineRe.ReplaceAllStringFunc(s, protect)

	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	for i, code := range saved {
		s = strings.Replace(s, fmt.Sprintf("￹%d￻", i), code, 1)
	}
	return s
}

type tagRule struct {
	re   *regexp.Regexp
	repl string
}

var styleRules = []tagRule{
	{regexp.MustCompile(`(?is)\[b\](.*?)\[/b\]`), "**$1**"},
	{regexp.MustCompile(`(?is)\[i\](.*?)\[/i\]`), "*$1*"},
	{regexp.MustCompile(`(?is)\[u\](.*?)\[/u\]`), "[u]$1[/u]"},
	{regexp.MustCompile(`(?is)\[s\](.*?)\[/s\]`), "~~$1~~"},
	{regexp.MustCompile(`(?is)\[strike\](.*?)\[/strike\]`), "~~$1~~"},
	// styling containers the target has no equivalent for: keep the content
	{regexp.MustCompile(`(?is)\[color=[^\]]*\](.*?)\[/color\]`), "$1"},
	{regexp.MustCompile(`(?is)\[size=[^\]]*\](.*?)\[/size\]`), "$1"},
	{regexp.MustCompile(`(?is)\[font=[^\]]*\](.*?)\[/font\]`), "$1"},
	{regexp.MustCompile(`(?is)\[h=[^\]]*\](.*?)\[/h\]`), "## $1"},
	{regexp.MustCompile(`(?is)\[center\](.*?)\[/center\]`), "$1"},
	{regexp.MustCompile(`(?is)\[left\](.*?)\[/left\]`), "$1"},
	{regexp.MustCompile(`(?is)\[right\](.*?)\[/right\]`), "$1"},
	{regexp.MustCompile(`(?is)\[indent\](.*?)\[/indent\]`), "$1"},
	{regexp.MustCompile(`(?is)\[table[^\]]*\](.*?)\[/table\]`), "$1"},
	{regexp.MustCompile(`(?is)\[tr\](.*?)\[/tr\]`), "$1\n"},
	{regexp.MustCompile(`(?is)\[td\](.*?)\[/td\]`), "$1 "},
	{regexp.MustCompile(`(?is)\[hr\]`), "\n---\n"},
	{regexp.MustCompile(`(?is)\[noparse\](.*?)\[/noparse\]`), "`$1`"},
}

// rewriteInlineStyles maps inline style tags to target equivalents, or strips
// the tag keeping its content where the target has none.
func rewriteInlineStyles(s string) string {
	for _, r := range styleRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

var mediaRules = []tagRule{
	{regexp.MustCompile(`(?is)\[img\]\s*(\S+?)\s*\[/img\]`), "![]($1)"},
	{regexp.MustCompile(`(?is)\[attach(?:=[^\]]*)?\](\d+)\[/attach\]`), "[attachment:$1]"},
	{regexp.MustCompile(`(?is)\[video=youtube;([^\]]+)\].*?\[/video\]`),
		"\nhttps://www.youtube.com/watch?v=$1\n"},
	{regexp.MustCompile(`(?is)\[video=vimeo;([^\]]+)\].*?\[/video\]`),
		"\nhttps://vimeo.com/$1\n"},
	{regexp.MustCompile(`(?is)\[video\](\S+?)\[/video\]`), "\n$1\n"},
	{regexp.MustCompile(`(?is)\[url="?([^"\]]+)"?\](.*?)\[/url\]`), "[$2]($1)"},
	{regexp.MustCompile(`(?is)\[url\](.*?)\[/url\]`), "$1"},
	{regexp.MustCompile(`(?is)\[email\](.*?)\[/email\]`), "$1"},
}

// rewriteMedia maps image, embedded-video and labelled-link tags to target
// inline syntax. Bare video provider references become onebox-able URLs.
func rewriteMedia(s string) string {
	for _, r := range mediaRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

var (
	listOpenRe     = regexp.MustCompile(`(?i)\[list\]`)
	listOrderedRe  = regexp.MustCompile(`(?i)\[list=[^\]]*\]`)
	listCloseRe    = regexp.MustCompile(`(?i)\[/list(:[a-z])?\]`)
	listItemRe     = regexp.MustCompile(`(?i)\[\*(:[a-z0-9]+)?\]`)
	listItemEndRe  = regexp.MustCompile(`(?i)\[/\*(:[a-z0-9]+)?\]`)
	orderedCloseRe = regexp.MustCompile(`(?i)\[/list:o\]`)
)

// rewriteLists normalizes list constructs, including the legacy alternate
// closing tokens some exports emit ([/list:u], [*:1abc]). With the external
// converter enabled, the output is the canonical [ul]/[ol]/[li] form that
// converter consumes; without it, plain markdown list lines.
func rewriteLists(s string, canonical bool) string {
	if canonical {
		s = orderedCloseRe.ReplaceAllString(s, "[/ol]")
		s = listOrderedRe.ReplaceAllString(s, "[ol]")
		s = listOpenRe.ReplaceAllString(s, "[ul]")
		s = listCloseRe.ReplaceAllString(s, "[/ul]")
		s = listItemEndRe.ReplaceAllString(s, "[/li]")
		s = listItemRe.ReplaceAllString(s, "[li]")
		return s
	}
	s = listOrderedRe.ReplaceAllString(s, "\n")
	s = listOpenRe.ReplaceAllString(s, "\n")
	s = listCloseRe.ReplaceAllString(s, "\n")
	s = listItemEndRe.ReplaceAllString(s, "")
	s = listItemRe.ReplaceAllString(s, "\n- ")
	return s
}
