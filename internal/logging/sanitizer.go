package logging

import (
	"regexp"
	"strings"
)

const redactedText = "[REDACTED]"

// redaction rules applied to messages and string attributes. Each
// expression keeps its first submatch and replaces the rest.
var redactionRules = []string{
	// keystone and swift auth headers
	`(?i)(x-(?:auth|subject|storage)-token["'\s:=]+)[A-Za-z0-9_-]{16,}`,
	// user:password@ in service URLs
	`(?i)(://[^\s:/@]+:)[^\s@/]+@`,
	// swift temp URLs
	`(?i)(temp_url_sig=)[0-9a-f]+`,
	// credentials blocks from VCAP_SERVICES
	`(?i)("(?:password|apikey|api_key|secret_access_key|access_key_id)"\s*:\s*)"[^"]*"`,
	`(?i)(bearer\s+)[A-Za-z0-9._-]{20,}`,
	`(?i)((?:password|passwd|secret|token|api[_-]?key)["'\s:=]+)[^\s"',}]{8,}`,
}

// Sanitizer redacts credentials from log output.
type Sanitizer struct {
	rules []*regexp.Regexp
	keys  map[string]struct{}
}

// NewSanitizer returns a sanitizer with the built-in rules. Attribute keys
// listed in keys are redacted wholesale, in addition to the defaults.
func NewSanitizer(keys ...string) *Sanitizer {
	s := &Sanitizer{keys: make(map[string]struct{})}
	for _, r := range redactionRules {
		s.rules = append(s.rules, regexp.MustCompile(r))
	}
	for _, k := range append([]string{
		"password", "apikey", "api_key", "secret", "token",
		"auth_token", "x-auth-token", "x-storage-token", "authorization",
	}, keys...) {
		s.keys[strings.ToLower(k)] = struct{}{}
	}
	return s
}

// Sanitize returns input with every credential it recognises replaced.
func (s *Sanitizer) Sanitize(input string) string {
	for _, re := range s.rules {
		if re.MatchString(input) {
			input = re.ReplaceAllString(input, "${1}"+redactedText)
		}
	}
	return input
}

// IsSensitiveKey reports whether values under key are always redacted.
func (s *Sanitizer) IsSensitiveKey(key string) bool {
	_, ok := s.keys[strings.ToLower(key)]
	return ok
}
