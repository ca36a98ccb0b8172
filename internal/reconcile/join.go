// Package reconcile compares the locally tracked HS codes with the
// authority's catalog, joined by code value.
package reconcile

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
)

// Status classifies one code.
type Status string

const (
	// StatusMatched means both sources carry the code with the same description.
	StatusMatched Status = "matched"
	// StatusDescriptionMismatch means both carry the code but describe it differently.
	StatusDescriptionMismatch Status = "description_mismatch"
	// StatusMissingExternal means the code is tracked locally but absent from the authority.
	StatusMissingExternal Status = "missing_external"
	// StatusUntracked means the authority lists a code matching the search that is not tracked locally.
	StatusUntracked Status = "untracked"
	// StatusUnverified means the other source was unavailable.
	StatusUnverified Status = "unverified"
)

// Entry is one joined code.
type Entry struct {
	Code     string         `json:"code"`
	Status   Status         `json:"status"`
	Local    *hscode.HSCode `json:"local,omitempty"`
	External *fbr.HSCode    `json:"external,omitempty"`
}

// Join classifies local against external. External records are indexed by
// code keeping the first occurrence; later duplicates are discarded and
// counted. Untracked entries are produced only for a non-empty search.
func Join(local []hscode.HSCode, external []fbr.HSCode, search string) ([]Entry, int) {
	index, unique, duplicates := indexExternal(external)

	entries := make([]Entry, 0, len(local))
	seen := make(map[string]bool, len(local))
	for i := range local {
		l := local[i]
		code := normalizeCode(l.Code)
		seen[code] = true
		entry := Entry{Code: code, Local: &l}
		ext, ok := index[code]
		switch {
		case !ok:
			entry.Status = StatusMissingExternal
		case SameDescription(l.Description, ext.Description):
			entry.Status = StatusMatched
			entry.External = ext
		default:
			entry.Status = StatusDescriptionMismatch
			entry.External = ext
		}
		entries = append(entries, entry)
	}

	if strings.TrimSpace(search) != "" {
		for _, ext := range unique {
			if seen[ext.Code] || !Matches(ext, search) {
				continue
			}
			entries = append(entries, Entry{Code: ext.Code, Status: StatusUntracked, External: ext})
		}
	}

	sortEntries(entries)
	return entries, duplicates
}

// Unverified lists one source's records when the other could not be read.
func Unverified(local []hscode.HSCode, external []fbr.HSCode, search string) ([]Entry, int) {
	entries := make([]Entry, 0, len(local))
	for i := range local {
		l := local[i]
		entries = append(entries, Entry{Code: normalizeCode(l.Code), Status: StatusUnverified, Local: &l})
	}
	_, unique, duplicates := indexExternal(external)
	if strings.TrimSpace(search) != "" {
		for _, ext := range unique {
			if Matches(ext, search) {
				entries = append(entries, Entry{Code: ext.Code, Status: StatusUnverified, External: ext})
			}
		}
	}
	sortEntries(entries)
	return entries, duplicates
}

func indexExternal(external []fbr.HSCode) (map[string]*fbr.HSCode, []*fbr.HSCode, int) {
	index := make(map[string]*fbr.HSCode, len(external))
	unique := make([]*fbr.HSCode, 0, len(external))
	duplicates := 0
	for i := range external {
		ext := external[i]
		ext.Code = normalizeCode(ext.Code)
		if _, dup := index[ext.Code]; dup {
			duplicates++
			continue
		}
		index[ext.Code] = &ext
		unique = append(unique, &ext)
	}
	return index, unique, duplicates
}

// SameDescription compares descriptions after Unicode normalisation, case
// folding and whitespace collapsing.
func SameDescription(a, b string) bool {
	return normalizeText(a) == normalizeText(b)
}

// Matches reports whether ext matches search by code or description.
func Matches(ext *fbr.HSCode, search string) bool {
	needle := normalizeText(search)
	if needle == "" {
		return true
	}
	return strings.Contains(normalizeText(ext.Code), needle) ||
		strings.Contains(normalizeText(ext.Description), needle)
}

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
}
