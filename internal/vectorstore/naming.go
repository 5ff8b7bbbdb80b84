package vectorstore

import "strings"

const (
	maxNameLen  = 63
	minNameLen  = 3
	shortPrefix = "col_"
)

// SanitizeName maps an arbitrary string to a valid collection name:
// 3 to 63 characters from [a-z0-9_-], starting and ending alphanumeric.
// Each run of other characters becomes a single underscore, so "a  b" maps to
// "a_b" rather than "a__b" as a per-character replacement would give.
// The mapping is pure and idempotent.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	replacing := false
	for _, r := range name {
		if isAlnum(r) || r == '_' || r == '-' {
			b.WriteRune(r)
			replacing = false
			continue
		}
		if !replacing {
			b.WriteByte('_')
			replacing = true
		}
	}
	s := trimRightNonAlnum(trimLeftNonAlnum(b.String()))
	if len(s) < minNameLen {
		s = shortPrefix + s
	}
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	s = trimRightNonAlnum(s)
	// truncation can strip a long name back below the minimum
	if len(s) < minNameLen {
		s = trimRightNonAlnum(shortPrefix + s)
	}
	return strings.ToLower(s)
}

// CollectionName derives the collection of an uploaded file.
func CollectionName(filename string) string {
	return SanitizeName("pdf_" + filename)
}

func trimLeftNonAlnum(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool { return !isAlnum(r) })
}

func trimRightNonAlnum(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool { return !isAlnum(r) })
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
