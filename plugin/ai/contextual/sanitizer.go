package contextual

import (
	"regexp"
	"strings"
)

// Signature is the current-format signature line. Sanitized text always ends
// with it, exactly once.
const Signature = "— Empathia"

// legacySignatures are the exact signature strings accumulated across format
// versions. All of them are stripped wherever they appear.
var legacySignatures = []string{
	"- Empathia",
	"-- Empathia",
	"~ Empathia",
	"[Empathia]",
	"With care, Empathia",
	"Yours, Empathia",
}

// signaturePattern catches remaining "signed by the assistant" variants that
// slip past the exact list (dash or tilde prefix, optional trailing period).
var signaturePattern = regexp.MustCompile(`(?mi)^[\s]*[-–—~]{1,2}\s*Empathia\.?\s*$`)

// greetingPatterns match leading generic greeting / empty-engagement openers.
// Applied repeatedly, so stacked openers are all removed. Every alternation
// ends on a word boundary so a greeting prefix inside an ordinary word
// ("Historically", "Heyday") never matches.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey)( there)?\b[!,.]?\s*`),
	regexp.MustCompile(`(?i)^good (morning|afternoon|evening)\b[!,.]?\s*`),
	regexp.MustCompile(`(?i)^(how can i help( you)?( today)?|what can i do for you( today)?)\b[?!.]?\s*`),
	regexp.MustCompile(`(?i)^(i'?m here (for you|to listen|to help))\b[!,.]?\s*`),
	regexp.MustCompile(`(?i)^(thanks? (you )?for sharing( that)?)\b[!,.]?\s*`),
	regexp.MustCompile(`(?i)^(great|good) question\b[!,.]?\s*`),
}

// blankRuns matches runs of three or more blank lines (four or more
// consecutive newlines); shorter runs are left alone.
var blankRuns = regexp.MustCompile(`\n{4,}`)

// Sanitize normalizes a raw generated reply: strips generic openers, strips
// every prior signature form, collapses blank-line runs, trims, and appends
// the current signature. Applying it to its own output is a no-op.
func Sanitize(text string) string {
	text = stripGreetings(text)
	text = stripSignatures(text)
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return ""
	}
	return text + "\n\n" + Signature
}

func stripGreetings(text string) string {
	for {
		trimmed := strings.TrimLeft(text, " \t\n")
		matched := false
		for _, pattern := range greetingPatterns {
			if loc := pattern.FindStringIndex(trimmed); loc != nil && loc[0] == 0 {
				trimmed = trimmed[loc[1]:]
				matched = true
			}
		}
		if !matched {
			return trimmed
		}
		text = trimmed
	}
}

func stripSignatures(text string) string {
	for _, sig := range append([]string{Signature}, legacySignatures...) {
		text = strings.ReplaceAll(text, sig, "")
	}
	return signaturePattern.ReplaceAllString(text, "")
}
