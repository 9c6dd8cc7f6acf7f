package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TargetProfile describes the trial a sponsor wants to place. Location is
// optional; its absence must not penalize any site.
type TargetProfile struct {
	TherapeuticArea  string    `json:"therapeutic_area"`
	Conditions       []string  `json:"conditions,omitempty"`
	Phase            string    `json:"phase"`
	InterventionType string    `json:"intervention_type"`
	Location         *GeoPoint `json:"location,omitempty"`
}

// Normalize returns a canonical copy: lower-cased, trimmed, conditions
// sorted and de-duplicated. Used for cache keys and reproducibility.
func (p TargetProfile) Normalize() TargetProfile {
	n := TargetProfile{
		TherapeuticArea:  strings.ToLower(strings.TrimSpace(p.TherapeuticArea)),
		Phase:            NormalizePhase(p.Phase),
		InterventionType: strings.ToLower(strings.TrimSpace(p.InterventionType)),
		Location:         p.Location,
	}
	seen := make(map[string]bool, len(p.Conditions))
	for _, c := range p.Conditions {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !seen[c] {
			seen[c] = true
			n.Conditions = append(n.Conditions, c)
		}
	}
	sort.Strings(n.Conditions)
	return n
}

// Hash returns a stable digest of the normalized profile.
func (p TargetProfile) Hash() string {
	n := p.Normalize()
	var sb strings.Builder
	sb.WriteString(n.TherapeuticArea)
	sb.WriteByte('|')
	sb.WriteString(n.Phase)
	sb.WriteByte('|')
	sb.WriteString(n.InterventionType)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(n.Conditions, ","))
	if n.Location != nil {
		fmt.Fprintf(&sb, "|%.4f,%.4f", n.Location.Latitude, n.Location.Longitude)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:16])
}

// NormalizePhase strips spaces and case so "Phase 2", "PHASE2" and
// "phase2" compare equal.
func NormalizePhase(phase string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(phase)), " ", "")
}

// MatchScore holds the four compatibility sub-scores plus the weighted
// overall, all clamped to [0,1]. LowConfidence marks a score derived from a
// site with no relevant history rather than from evidence of a poor fit.
type MatchScore struct {
	SiteID string `json:"site_id"`

	Therapeutic  float64 `json:"therapeutic"`
	Phase        float64 `json:"phase"`
	Intervention float64 `json:"intervention"`
	Geographic   float64 `json:"geographic"`
	Overall      float64 `json:"overall"`

	LowConfidence bool `json:"low_confidence"`
}
