package emailerror

import "strings"

// classifyRule maps a message predicate to a Kind. Rules are evaluated in
// order; the first match wins. Substring matching on vendor error text is
// brittle, so the whole table lives here and nowhere else — harden the rules
// in this file without touching call sites.
type classifyRule struct {
	match func(string) bool
	kind  Kind
}

func containsAny(substrs ...string) func(string) bool {
	return func(msg string) bool {
		for _, s := range substrs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
}

var classifyRules = []classifyRule{
	{containsAny("authentication failed", "auth failed", "invalid login", "username and password not accepted", "535 "), KindAuthentication},
	{containsAny("connection refused", "connection reset", "i/o timeout", "deadline exceeded", "broken pipe", "connection closed"), KindSMTPConnection},
	{containsAny("no such host", "network is unreachable", "dns", "lookup "), KindNetwork},
	{containsAny("rate limit", "too many", "421 ", "450 "), KindRateLimit},
	{containsAny("550 ", "551 ", "553 ", "mailbox unavailable", "user unknown", "recipient rejected"), KindDelivery},
}

// Classify maps a raw transport error onto the taxonomy and returns the
// corresponding typed error. Unmatched failures become KindUnknown
// (retryable), never a silent drop.
func Classify(raw error) *Error {
	if raw == nil {
		return nil
	}
	if typed, ok := raw.(*Error); ok {
		return typed
	}

	msg := strings.ToLower(raw.Error())
	for _, rule := range classifyRules {
		if rule.match(msg) {
			return wrapAs(rule.kind, raw)
		}
	}
	return Unknown(raw)
}

func wrapAs(kind Kind, raw error) *Error {
	switch kind {
	case KindAuthentication:
		return Authentication(raw)
	case KindSMTPConnection:
		return Connection(raw)
	case KindNetwork:
		return Network(raw)
	case KindRateLimit:
		return newError(KindRateLimit, "RATE_LIMIT", describe(raw),
			"The mail server is throttling sends. It will be retried later.", raw)
	case KindDelivery:
		return Delivery(raw)
	default:
		return Unknown(raw)
	}
}
