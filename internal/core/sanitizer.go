package core

import (
	"regexp"
	"strings"
)

const linkPlaceholder = "[link removed]"

var (
	// Paired interactive or executable elements, content included.
	pairedMarkup = regexp.MustCompile(`(?is)<\s*(button|script|iframe|form|object|select|textarea)\b[^>]*>.*?<\s*/\s*(?:button|script|iframe|form|object|select|textarea)\s*>`)
	// Void or unterminated tags of the same family.
	openingMarkup = regexp.MustCompile(`(?is)<\s*/?\s*(?:button|script|iframe|form|object|embed|input|select|textarea)\b[^>]*>`)

	linkPattern = regexp.MustCompile(`(?i)(?:https?|ftps?)://[^\s<>"'` + "`" + `]+`)
)

// Sanitize strips interactive markup and replaces every link with a
// placeholder. Sanitize(Sanitize(s)) == Sanitize(s).
//
// Both passes repeat until nothing changes, since removing one fragment can
// join its neighbours into a new tag or link.
func Sanitize(text string) string {
	for {
		next := pairedMarkup.ReplaceAllString(text, "")
		next = openingMarkup.ReplaceAllString(next, "")
		next = linkPattern.ReplaceAllStringFunc(next, replaceLink)
		if next == text {
			return text
		}
		text = next
	}
}

func replaceLink(match string) string {
	trimmed := trimLinkTail(match)
	tail := match[len(trimmed):]
	if strings.HasSuffix(trimmed, "://") {
		return match
	}
	return linkPlaceholder + tail
}

// trimLinkTail drops sentence punctuation and closing brackets that were not
// opened inside the link.
func trimLinkTail(link string) string {
	for len(link) > 0 {
		last := link[len(link)-1]
		switch last {
		case '.', ',', ';', ':', '!', '?':
			link = link[:len(link)-1]
			continue
		case ')', ']', '}':
			open := map[byte]byte{')': '(', ']': '[', '}': '{'}[last]
			if strings.Count(link, string(open)) < strings.Count(link, string(last)) {
				link = link[:len(link)-1]
				continue
			}
		}
		return link
	}
	return link
}
