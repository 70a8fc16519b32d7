package executor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// selectTemplate walks the fallback chain intent -> sentiment ->
// urgency -> "default". Empty result means the client has no usable
// template for this classification.
func selectTemplate(templates *clientconfig.ResponseTemplates, cls *comment.Classification) string {
	if templates == nil || len(templates.Templates) == 0 {
		return ""
	}
	for _, key := range []string{cls.Intent, cls.Sentiment, cls.Urgency, "default"} {
		if tpl, ok := templates.Templates[key]; ok && tpl != "" {
			return tpl
		}
	}
	return ""
}

// renderReply interpolates {name} and {platform}, strips anything left
// unresolved, truncates to the client limit and appends the signature.
func renderReply(template string, c *comment.Comment, templates *clientconfig.ResponseTemplates) string {
	reply := strings.ReplaceAll(template, "{name}", firstName(c.AuthorName))
	reply = strings.ReplaceAll(reply, "{platform}", c.Platform)
	reply = placeholderPattern.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)

	maxLen := templates.MaxReplyLength
	if maxLen > 0 && utf8.RuneCountInString(reply) > maxLen {
		if maxLen > 3 {
			reply = strings.TrimSpace(truncateRunes(reply, maxLen-3)) + "..."
		} else {
			reply = truncateRunes(reply, maxLen)
		}
	}

	if templates.Signature != "" {
		reply = reply + "\n\n" + templates.Signature
	}

	return reply
}

// truncateRunes shortens s to at most max runes so a cut never splits a
// multi-byte character.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
