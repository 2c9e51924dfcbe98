package nsd

import "regexp"

// label := "_" [A-Za-z0-9-_]{1,61} [A-Za-z0-9]
// type  := label "." "_" ("tcp" | "udp")
//
// The full grammar, anchored:
//
//	(leading-subtype ".")? type ".local"? "."? ("," trailing-subtype)?
//
// Mirrors NsdService.parseTypeAndSubtype's regex, including the quirk
// (flagged as an open question upstream) that the leading-subtype form wins
// when both a leading and a trailing subtype are present. An optional
// ".local" suffix is accepted and is not part of the returned type.
const labelPattern = `_[a-zA-Z0-9_-]{1,61}[a-zA-Z0-9]`

var serviceTypeRegexp = regexp.MustCompile(
	`^(?:(` + labelPattern + `)\.)?` +
		`(` + labelPattern + `\._(?:tcp|udp))(?:\.local)?\.?` +
		`(?:,(` + labelPattern + `))?$`,
)

// ParsedServiceType is the result of a successful parse: a normalized type
// string and an optional subtype label.
type ParsedServiceType struct {
	Type    string
	Subtype string // empty when absent
}

// ParseServiceType validates and splits a raw service-type string into
// (type, optional subtype). It is pure and total: failure is reported via ok
// == false rather than an error value, since "no match" carries no further
// detail worth wrapping.
func ParseServiceType(raw string) (ParsedServiceType, bool) {
	if raw == "" {
		return ParsedServiceType{}, false
	}

	m := serviceTypeRegexp.FindStringSubmatch(raw)
	if m == nil {
		return ParsedServiceType{}, false
	}

	leadingSub, typ, trailingSub := m[1], m[2], m[3]

	sub := trailingSub
	if leadingSub != "" {
		sub = leadingSub
	}

	return ParsedServiceType{Type: typ, Subtype: sub}, true
}
