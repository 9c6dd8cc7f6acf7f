// Package taxonomy assigns free-text trial conditions to therapeutic
// areas by keyword, and answers relatedness questions between condition
// strings. Assignment is first-match over an ordered bucket list so a
// condition never lands in two areas.
package taxonomy

import (
	"sort"
	"strings"
)

// Therapeutic area labels.
const (
	AreaOncology   = "Oncology"
	AreaEndocrine  = "Endocrinology"
	AreaCardiology = "Cardiology"
	AreaInfectious = "Infectious Disease"
	AreaPsychiatry = "Psychiatry"
	AreaNeurology  = "Neurology"
	AreaOther      = "Other"
)

type bucket struct {
	area     string
	keywords []string
}

// adjacency pairs areas whose patient populations and trial
// infrastructure overlap enough that history in one transfers partially
// to the other. Entries are symmetric; RelatedAreas reads both
// directions.
var adjacency = map[string][]string{
	AreaCardiology: {AreaEndocrine},
	AreaNeurology:  {AreaPsychiatry},
	AreaOncology:   {AreaEndocrine},
}

// Order matters: the first bucket whose keyword appears wins.
var buckets = []bucket{
	{AreaOncology, []string{"cancer", "tumor", "carcinoma", "sarcoma"}},
	{AreaEndocrine, []string{"diabetes", "glucose", "insulin"}},
	{AreaCardiology, []string{"heart", "cardiac", "cardiovascular", "hypertension"}},
	{AreaInfectious, []string{"infect", "virus", "bacteria", "viral", "bacterial"}},
	{AreaPsychiatry, []string{"mental", "depression", "anxiety", "psych"}},
	{AreaNeurology, []string{"neuro", "brain", "parkinson", "alzheimer"}},
}

// Areas lists every known therapeutic area, Other last.
func Areas() []string {
	out := make([]string, 0, len(buckets)+1)
	for _, b := range buckets {
		out = append(out, b.area)
	}
	return append(out, AreaOther)
}

// RelatedAreas lists the areas adjacent to one area, in stable order.
// Other relates to nothing.
func RelatedAreas(area string) []string {
	var out []string
	for from, list := range adjacency {
		if strings.EqualFold(from, area) {
			out = append(out, list...)
			continue
		}
		for _, rel := range list {
			if strings.EqualFold(rel, area) {
				out = append(out, from)
			}
		}
	}
	sort.Strings(out)
	return out
}

// AreasRelated reports whether two distinct areas are adjacent.
func AreasRelated(a, b string) bool {
	if strings.EqualFold(a, b) {
		return false
	}
	for _, rel := range RelatedAreas(a) {
		if strings.EqualFold(rel, b) {
			return true
		}
	}
	return false
}

// AreaForCondition maps one condition string to a therapeutic area.
// Unrecognized conditions fall into Other.
func AreaForCondition(condition string) string {
	lower := strings.ToLower(condition)
	for _, b := range buckets {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return b.area
			}
		}
	}
	return AreaOther
}

// Assign groups conditions by therapeutic area. Each area's conditions
// are deduplicated and sorted so repeated builds compare equal.
func Assign(conditions []string) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for _, c := range conditions {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		area := AreaForCondition(c)
		if seen[area] == nil {
			seen[area] = make(map[string]struct{})
		}
		seen[area][c] = struct{}{}
	}

	out := make(map[string][]string, len(seen))
	for area, set := range seen {
		list := make([]string, 0, len(set))
		for c := range set {
			list = append(list, c)
		}
		sort.Strings(list)
		out[area] = list
	}
	return out
}

// Related reports whether two condition strings describe overlapping
// indications. Containment either way counts; exact equality is the
// caller's concern, not relatedness.
func Related(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" || a == b {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
