package extract

import (
	"regexp"
	"strconv"
)

// sizeAlt is the size-token alternation. Literal sizes come before the digit
// branch so "GG" is never consumed as two failed matches.
const sizeAlt = `XGG|GG|XG|PP|G|M|P|\d{1,3}`

var (
	// tokenRE captures one identifier (prefix of 1..3 dash-joined uppercase
	// groups, one or two free segments, then a size) plus an optional run of
	// quantity digits glued to it.
	tokenRE = regexp.MustCompile(
		`((?:[A-Z]{2,}(?:-[A-Z]{2,}){0,2})-` +
			`(?:[A-Z0-9ÁÀÂÃÉÈÊÍÌÎÓÒÔÕÚÙÛÇ]+)(?:-[A-Z0-9ÁÀÂÃÉÈÊÍÌÎÓÒÔÕÚÙÛÇ]+)?-` +
			`(?:` + sizeAlt + `))(\d{1,3})?`)

	sizeSuffixRE = regexp.MustCompile(`^(.*-)(` + sizeAlt + `)$`)
	digitsRE     = regexp.MustCompile(`^\d{1,3}$`)
	tailRE       = regexp.MustCompile(`^(?:` + sizeAlt + `)?(\d{1,3})$`)
)

// recognizedSizes is the closed set of sizes the catalog sells. A numeric
// suffix outside this set is treated as size digits glued to a quantity.
var recognizedSizes = map[string]bool{
	"4": true, "6": true, "8": true, "10": true, "12": true, "14": true, "16": true,
	"P": true, "M": true, "G": true, "GG": true, "PP": true, "XG": true, "XGG": true,
}

// fact is one identifier/quantity pair read off a line.
type fact struct {
	id  string
	qty int
}

// splitGluedQuantity splits quantity digits off a token whose size segment is
// numeric but not a recognized size. Exactly three digits split as two-digit
// size plus one-digit quantity; otherwise digits peel off the right one at a
// time until the remainder is a recognized size.
func splitGluedQuantity(token string) (string, string) {
	m := sizeSuffixRE.FindStringSubmatch(token)
	if m == nil {
		return token, ""
	}
	prefix, size := m[1], m[2]
	if !digitsRE.MatchString(size) || recognizedSizes[size] {
		return token, ""
	}
	if len(size) == 3 {
		return prefix + size[:2], size[2:]
	}
	peeled := ""
	for len(size) > 1 && !recognizedSizes[size] {
		peeled = size[len(size)-1:] + peeled
		size = size[:len(size)-1]
	}
	if peeled == "" || !recognizedSizes[size] {
		return prefix + size + peeled, ""
	}
	return prefix + size, peeled
}

// parseQuantity validates a 1..3 digit quantity string. When the character
// right after the digits is "/", the digits belong to a pagination fragment
// and only the first digit is the quantity.
func parseQuantity(digits string, next byte) (int, bool) {
	if !digitsRE.MatchString(digits) {
		return 0, false
	}
	if next == '/' {
		digits = digits[:1]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// scanLine extracts identifier/quantity facts from one compacted line. An
// identifier whose quantity has not arrived yet is held as pending; the text
// after the last token may supply it, optionally prefixed by a stray size.
// A pending identifier still unresolved at line end is discarded.
func scanLine(line string) []fact {
	matches := tokenRE.FindAllStringSubmatchIndex(line, -1)
	if matches == nil {
		return nil
	}

	var facts []fact
	pending := ""
	lastEnd := 0
	for _, m := range matches {
		token := line[m[2]:m[3]]
		digits := ""
		digitsEnd := m[3]
		if m[4] >= 0 {
			digits = line[m[4]:m[5]]
			digitsEnd = m[5]
		} else {
			token, digits = splitGluedQuantity(token)
		}

		var next byte
		if digitsEnd < len(line) {
			next = line[digitsEnd]
		}
		if qty, ok := parseQuantity(digits, next); ok {
			facts = append(facts, fact{id: compact(token), qty: qty})
			pending = ""
		} else {
			pending = token
		}
		lastEnd = m[1]
	}

	if pending != "" {
		tail := line[lastEnd:]
		if qty, ok := parseQuantity(tail, 0); ok {
			facts = append(facts, fact{id: compact(pending), qty: qty})
		} else if m := tailRE.FindStringSubmatch(tail); m != nil {
			if qty, ok := parseQuantity(m[1], 0); ok {
				facts = append(facts, fact{id: compact(pending), qty: qty})
			}
		}
	}
	return facts
}

// dedupeFacts keeps the first occurrence of each (identifier, quantity) pair.
func dedupeFacts(facts []fact) []fact {
	seen := make(map[string]struct{}, len(facts))
	var out []fact
	for _, f := range facts {
		key := f.id + "\x00" + strconv.Itoa(f.qty)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
