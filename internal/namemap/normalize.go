package namemap

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNameLength bounds normalized names; conservative enough for ISO 9660
// bridge filesystems used on DVD media.
const maxNameLength = 100

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	controlRE    = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	unsafeRE     = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Windows refuses these stems regardless of extension; the burned disc may be
// read on any platform, so avoid them everywhere.
var reservedStems = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// asciiFolder decomposes characters, strips combining marks, and drops
// whatever non-ASCII remains, so "café" becomes "cafe".
var asciiFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// foldASCII converts text to its closest ASCII rendering.
func foldASCII(text string) string {
	folded, _, err := transform.String(asciiFolder, text)
	if err != nil {
		// Fall back to dropping non-ASCII bytes outright.
		var b strings.Builder
		for _, r := range text {
			if r <= unicode.MaxASCII {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return folded
}

// sanitize makes a folded string safe for cross-platform filesystems:
// collapsed whitespace, no control or reserved punctuation characters, no
// leading/trailing dots or spaces, never empty.
func sanitize(name string) string {
	name = whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	name = controlRE.ReplaceAllString(name, "")
	name = unsafeRE.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}
	return name
}

// truncate enforces maxNameLength while preserving the extension. A truncated
// stem gains a hash fragment derived from the full original identifier so two
// long identifiers sharing a prefix cannot collapse onto the same name.
func truncate(name, originalID string) string {
	if len(name) <= maxNameLength {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	fragment := hashFragment(originalID)

	available := maxNameLength - len(ext) - len(fragment) - 1
	if available < 1 {
		// The extension alone exhausts the budget; it gets cut as well.
		capped := fragment + ext
		return strings.TrimRight(capped[:maxNameLength], ". ")
	}
	return strings.TrimRight(stem[:available], ". ") + "_" + fragment + ext
}

func hashFragment(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:8]
}

// avoidReserved rewrites names whose stem is a Windows device name.
func avoidReserved(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if _, bad := reservedStems[strings.ToUpper(stem)]; bad {
		return stem + "_" + ext
	}
	return name
}

// NormalizeName derives the deterministic filesystem-safe candidate for an
// identifier, before any collision disambiguation by the Mapper.
func NormalizeName(originalID string) string {
	name := sanitize(foldASCII(originalID))
	name = avoidReserved(name)
	return truncate(name, originalID)
}
