package smtp

import "regexp"

// Denylist sanitizer: strips script blocks, inline event handlers, and
// javascript: URIs from template HTML before sending. This is NOT a full
// HTML sanitizer — it hardens the common injection vectors in templates we
// author ourselves, nothing more. Untrusted HTML needs a real sanitizer.
var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	eventHandlerRe = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsURIRe        = regexp.MustCompile(`(?i)(href|src)\s*=\s*(["']?)\s*javascript:[^"'>\s]*(["']?)`)
)

// SanitizeHTML removes the denylisted constructs while preserving the
// surrounding markup.
func SanitizeHTML(html string) string {
	html = scriptBlockRe.ReplaceAllString(html, "")
	html = eventHandlerRe.ReplaceAllString(html, "")
	html = jsURIRe.ReplaceAllString(html, `$1=$2$3`)
	return html
}
