package markup

import (
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// charsetNormalizer converts text that was stored under a declared legacy
// charset into UTF-8 and decodes HTML entities back to literal characters.
// The declared charset comes from configuration, consulted once at startup.
type charsetNormalizer struct {
	decoder *encoding.Decoder
}

func newCharsetNormalizer(charset string) (*charsetNormalizer, error) {
	charset = strings.TrimSpace(strings.ToLower(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return &charsetNormalizer{}, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown source charset %q: %w", charset, err)
	}
	return &charsetNormalizer{decoder: enc.NewDecoder()}, nil
}

func (c *charsetNormalizer) normalize(s string) string {
	if c.decoder != nil {
		if decoded, err := c.decoder.String(s); err == nil {
			s = decoded
		}
	}
	return html.UnescapeString(s)
}
