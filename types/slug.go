package types

import "regexp"

// slugPattern matches kebab-case identifiers: lowercase alphanumeric runs
// joined by single hyphens, no leading or trailing hyphen.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsValidSlug reports whether s is a well-formed kebab-case slug.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
