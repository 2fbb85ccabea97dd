// Package extract pulls issue metadata out of raw search-result HTML.
// Everything here is a pure function of its input text: malformed
// fragments yield empty results, never errors.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aspenlund/kbharvest/pkg/data"
)

// Strategy tries one way of reading a value out of a fragment and
// returns "" when it does not apply.
type Strategy func(html string) string

// firstMatch runs strategies in priority order and returns the first
// non-empty result. Lower-priority strategies are not consulted once
// one matches.
func firstMatch(html string, strategies ...Strategy) string {
	for _, s := range strategies {
		if v := s(html); v != "" {
			return v
		}
	}
	return ""
}

var (
	dataSrcManifestRe = regexp.MustCompile(`data-src="https://data\.kb\.se/iiif/\d+/([^/%"]+)`)
	srcManifestRe     = regexp.MustCompile(`src="https://data\.kb\.se/iiif/\d+/([^/%"]+)`)
	titleTagDateRe    = regexp.MustCompile(`<title>[^|]*?(\d{4}-\d{2}-\d{2})\s*\|`)
	filenameDateRe    = regexp.MustCompile(`bib\d+_(\d{4})(\d{2})(\d{2})_`)
	assetFilenameRe   = regexp.MustCompile(`bib\d+_\d+_\d+_\d+_\d+\.jp2`)
	titleSanitizeRe   = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
)

func submatch(re *regexp.Regexp) Strategy {
	return func(html string) string {
		if m := re.FindStringSubmatch(html); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
}

// elementText reads the trimmed text of the first element matching a
// CSS selector.
func elementText(selector string) Strategy {
	return func(html string) string {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(doc.Find(selector).First().Text())
	}
}

// ManifestID extracts the IIIF manifest identifier from a fragment.
// The data-src attribute is authoritative; plain src is the fallback
// for results rendered without lazy loading.
func ManifestID(html string) string {
	return firstMatch(html,
		submatch(dataSrcManifestRe),
		submatch(srcManifestRe),
	)
}

// Date extracts the issue date as YYYY-MM-DD, trying the dedicated
// date element, then the <title> tag, then a date token embedded in a
// conventional asset filename.
func Date(html string) string {
	return firstMatch(html,
		elementText("p.search-result-item-date"),
		submatch(titleTagDateRe),
		func(html string) string {
			if m := filenameDateRe.FindStringSubmatch(html); m != nil {
				return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
			}
			return ""
		},
	)
}

// Title reads the dedicated title element, or "" when the fragment
// carries none.
func Title(html string) string {
	return elementText("div.search-result-item-title")(html)
}

// Filenames collects every candidate asset filename mentioned in the
// fragment. The result is de-duplicated; order is not guaranteed.
func Filenames(html string) []string {
	matches := assetFilenameRe.FindAllString(html, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// SanitizeTitle strips every character that is not a letter, digit,
// underscore, whitespace or hyphen, so the title is safe as a path
// segment.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(titleSanitizeRe.ReplaceAllString(title, ""))
}

// SanitizeDate makes a date safe as a path segment.
func SanitizeDate(date string) string {
	return strings.ReplaceAll(date, "/", "-")
}

// IssueFrom builds an Issue from one search-result fragment. Title and
// date passed in by the navigator (already-readable element text) take
// precedence; extraction fills whatever is missing. A fragment without
// a manifest ID yields nil: the item is skipped, never an error.
func IssueFrom(html, title, date string) *data.Issue {
	manifestID := ManifestID(html)
	if manifestID == "" {
		slog.Warn("search result fragment has no manifest id, skipping")
		return nil
	}

	if title == "" {
		title = Title(html)
	}
	if title != "" {
		title = SanitizeTitle(title)
	}
	if title == "" {
		title = "Unknown"
	}

	if date == "" {
		date = Date(html)
	}
	if date != "" {
		date = SanitizeDate(date)
	} else {
		date = "Unknown_Date"
	}

	return &data.Issue{
		Title:      title,
		Date:       date,
		ManifestID: manifestID,
		Filenames:  Filenames(html),
	}
}
