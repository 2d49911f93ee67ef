package extract

import (
	"regexp"
	"strings"
)

var (
	pageMarkerRE = regexp.MustCompile(`\s+\d+/\d+\s*$`)

	// Boilerplate emitted by the recap export around the item table. The set is
	// fixed: report headers, column titles, print banners, bare URLs, bare
	// dates and the summary-count footer.
	noiseRE = regexp.MustCompile(`(?i)` + strings.Join([]string{
		`^LISTA DE RESUMO`,
		`^\(PRODUTOS DO ARMAZ[EÉ]M\)`,
		`^PRODUTOS DO ARMAZ[EÉ]M`,
		`^VARIA[CÇ][AÃ]O$`,
		`^SKU DE PRODUTO$`,
		`^QTD\.?$`,
		`^IMPRIMIR.*UPSELLER`,
		`^HTTPS?://`,
		`^\d+/\d+$`,
		`^\d{1,2}/\d{1,2}/\d{4}`,
		`^QTD\. DE PEDIDOS`,
		`^N[ÚU]MERO DE SKUS DE PRODUTOS`,
		`^TOTAL DE PRODUTOS`,
	}, "|"))

	whitespaceRE = regexp.MustCompile(`\s+`)
	dashRunRE    = regexp.MustCompile(`-{2,}`)
	strayStartRE = regexp.MustCompile(`^(?:` + sizeAlt + `)([A-Z]{2,}(?:-[A-Z]{2,}){0,2}-)`)
	strayCommaRE = regexp.MustCompile(`,(?:` + sizeAlt + `)([A-Z]{2,}(?:-[A-Z]{2,}){0,2}-)`)
)

// normalizeLines splits page text on line breaks, trims, drops empty lines and
// strips trailing pagination markers of the form "<n>/<m>".
func normalizeLines(pages []string) []string {
	raw := strings.ReplaceAll(strings.Join(pages, "\n"), "\r", "\n")
	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		lines = append(lines, pageMarkerRE.ReplaceAllString(ln, ""))
	}
	return lines
}

// filterNoise drops lines matching the fixed boilerplate set.
func filterNoise(lines []string) []string {
	var kept []string
	for _, ln := range lines {
		if noiseRE.MatchString(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return kept
}

// mergeWrapped concatenates lines broken across a layout boundary: a line
// ending in "-" absorbs following lines while the accumulated text still ends
// in "-". The loop is bounded by the remaining line count.
func mergeWrapped(lines []string) []string {
	var merged []string
	for i := 0; i < len(lines); {
		cur := lines[i]
		i++
		for strings.HasSuffix(cur, "-") && i < len(lines) {
			cur += lines[i]
			i++
		}
		merged = append(merged, cur)
	}
	return merged
}

// compact uppercases, removes whitespace and collapses repeated dashes.
func compact(s string) string {
	s = strings.ToUpper(s)
	s = whitespaceRE.ReplaceAllString(s, "")
	return dashRunRE.ReplaceAllString(s, "-")
}

// stripStraySizes removes a size token hoisted in front of an identifier by
// the export's column layout, both at line start and right after a comma, but
// only when what follows looks like the start of a real identifier.
func stripStraySizes(s string) string {
	s = strayStartRE.ReplaceAllString(s, "$1")
	return strayCommaRE.ReplaceAllString(s, ",$1")
}
