package markup

import (
	"regexp"
	"strconv"
	"strings"
)

var listTokenRe = regexp.MustCompile(`(?i)\[(/?)(ul|ol|li)\]`)

// MarkdownConverter converts the canonical list tags left in place when
// list conversion is delegated, producing nested markdown lists with
// numbered items. Content outside list constructs passes through untouched.
func MarkdownConverter() Converter {
	return ConverterFunc(convertLists)
}

type listFrame struct {
	ordered bool
	counter int
}

func convertLists(s string) (string, error) {
	if !listTokenRe.MatchString(s) {
		return s, nil
	}

	var (
		out   strings.Builder
		stack []listFrame
		last  int
	)
	for _, loc := range listTokenRe.FindAllStringSubmatchIndex(s, -1) {
		out.WriteString(s[last:loc[0]])
		last = loc[1]

		closing := loc[2] != loc[3]
		tag := strings.ToLower(s[loc[4]:loc[5]])

		switch {
		case tag == "li" && closing:
			// item content ends at the newline the next token introduces
		case tag == "li":
			if len(stack) == 0 {
				// stray item outside any list, treat as a bullet
				stack = append(stack, listFrame{})
			}
			top := &stack[len(stack)-1]
			out.WriteString("\n")
			out.WriteString(strings.Repeat("  ", len(stack)-1))
			if top.ordered {
				top.counter++
				out.WriteString(strconv.Itoa(top.counter) + ". ")
			} else {
				out.WriteString("- ")
			}
		case closing:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				out.WriteString("\n")
			}
		default:
			stack = append(stack, listFrame{ordered: tag == "ol"})
		}
	}
	out.WriteString(s[last:])
	return out.String(), nil
}
