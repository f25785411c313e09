package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// Quote tags may reference the quoted post ("username;12345") or just name
// the user. A referenced post is resolved through the id mapping being built
// by the run; when both the target post and its topic resolve, the quote
// becomes a structured reference carrying (username, post number, topic id).
// Otherwise it degrades to a username-only quote, never an error.

var (
	quoteRefRe   = regexp.MustCompile(`(?i)\[quote=(?:"|&quot;)?\s*([^";\]]+?)\s*;\s*(\d+)\s*(?:"|&quot;)?\]`)
	quotePlainRe = regexp.MustCompile(`(?i)\[quote=(?:"|&quot;)?\s*([^";\]]+?)\s*(?:"|&quot;)?\]`)
	quoteOpenRe  = regexp.MustCompile(`(?i)\[quote\]`)
	quoteCloseRe = regexp.MustCompile(`(?i)\[/quote\]`)
)

func rewriteQuotes(s string, resolver QuoteResolver) string {
	s = quoteRefRe.ReplaceAllStringFunc(s, func(m string) string {
		groups := quoteRefRe.FindStringSubmatch(m)
		username := resolver.ResolveUsername(groups[1])
		if number, topicID, ok := resolver.ResolvePost(groups[2]); ok {
			return fmt.Sprintf("\n[quote=\"%s, post:%d, topic:%d\"]\n", username, number, topicID)
		}
		return fmt.Sprintf("\n[quote=\"%s\"]\n", username)
	})
	s = quotePlainRe.ReplaceAllStringFunc(s, func(m string) string {
		groups := quotePlainRe.FindStringSubmatch(m)
		username := resolver.ResolveUsername(groups[1])
		return fmt.Sprintf("\n[quote=\"%s\"]\n", username)
	})
	s = quoteOpenRe.ReplaceAllString(s, "\n[quote]\n")
	s = quoteCloseRe.ReplaceAllString(s, "\n[/quote]\n")
	return collapseBlankRuns(s)
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

func collapseBlankRuns(s string) string {
	return strings.TrimLeft(blankRunRe.ReplaceAllString(s, "\n\n"), "\n")
}
