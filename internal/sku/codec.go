// Package sku builds and normalizes stock-keeping identifiers.
//
// The codec is pure: the same (base, color, size) input always yields the
// same identifier, and Sanitize is idempotent.
package sku

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	colorDisallowed = regexp.MustCompile(`[^a-zA-Z0-9ÁÀÂÃÉÈÊÍÌÎÓÒÔÕÚÙÛÇáàâãéèêíìîóòôõúùûç ]`)
	sizeDisallowed  = regexp.MustCompile(`[^A-Za-z0-9]`)
	skuDisallowed   = regexp.MustCompile(`[^A-Z0-9\-_ÁÀÂÃÉÈÊÍÌÎÓÒÔÕÚÙÛÇ]`)
	nonAlnum        = regexp.MustCompile(`[^A-Z0-9]`)

	titler = cases.Title(language.BrazilianPortuguese)
)

// Generate builds an identifier of the form BASE-Color-SIZE.
func Generate(base, color, size string) string {
	cleanColor := strings.TrimSpace(colorDisallowed.ReplaceAllString(strings.TrimSpace(color), ""))
	cleanColor = strings.ReplaceAll(titler.String(cleanColor), " ", "")
	cleanSize := sizeDisallowed.ReplaceAllString(strings.ToUpper(strings.TrimSpace(size)), "")
	cleanBase := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(base)), " ", "")
	return fmt.Sprintf("%s-%s-%s", cleanBase, cleanColor, cleanSize)
}

// Sanitize uppercases, trims, removes spaces and drops any character outside
// A-Z, 0-9, dash, underscore and the accented letters used in color names.
func Sanitize(s string) string {
	s = strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "")
	return skuDisallowed.ReplaceAllString(s, "")
}

// NormalizeKey reduces an identifier to bare alphanumerics. It is used only
// for tolerant matching, never for display or storage.
func NormalizeKey(s string) string {
	return nonAlnum.ReplaceAllString(Sanitize(s), "")
}
