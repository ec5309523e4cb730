// Package classify assigns items to taxonomy fields across four
// independent axes, plus the section labels used by the latest document.
package classify

import (
	"fmt"
	"strings"

	"github.com/psemi/newshub/internal/collector"
	"github.com/psemi/newshub/internal/config"
)

// FieldAssignment holds at most one field per axis. Primary is the
// first populated axis in table order, or "general" when nothing
// matched anywhere.
type FieldAssignment struct {
	Primary  string `json:"primary,omitempty"`
	Device   string `json:"device,omitempty"`
	Process  string `json:"process,omitempty"`
	Market   string `json:"market,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// Fields lists the distinct field keys the assignment populates,
// including the general fallback.
func (a FieldAssignment) Fields() []string {
	seen := make(map[string]struct{}, 5)
	out := make([]string, 0, 5)
	for _, f := range []string{a.Primary, a.Device, a.Process, a.Market, a.Industry} {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// IsGeneral reports whether the item fell through every axis.
func (a FieldAssignment) IsGeneral() bool {
	return a.Primary == config.GeneralField
}

// ClassificationError marks an item too malformed to classify; the
// pipeline drops it with a logged warning.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify: %s", e.Reason)
}

// Section labels for the latest document.
const (
	SectionTech        = "tech"
	SectionApplication = "application"
	SectionVendor      = "vendor"
	SectionSNS         = "sns"
	SectionGeneral     = config.GeneralField
)

// SectionNames returns all section labels in document order.
func SectionNames() []string {
	return []string{SectionTech, SectionApplication, SectionVendor, SectionSNS, SectionGeneral}
}

type Classifier struct {
	taxonomy config.Taxonomy
	sections config.SectionTable
}

func New(taxonomy config.Taxonomy, sections config.SectionTable) *Classifier {
	return &Classifier{taxonomy: taxonomy, sections: sections}
}

// Fields runs one independent pass per axis; within an axis the first
// leaf in table order with a keyword hit wins. Idempotent: the same
// item always yields the same assignment.
func (c *Classifier) Fields(item collector.Item) (FieldAssignment, error) {
	if strings.TrimSpace(item.Title) == "" {
		return FieldAssignment{}, &ClassificationError{Reason: "item has no title"}
	}
	if strings.TrimSpace(item.URL) == "" {
		return FieldAssignment{}, &ClassificationError{Reason: "item has no url"}
	}

	text := strings.ToLower(item.Title + " " + item.Excerpt)

	var a FieldAssignment
	for _, axis := range c.taxonomy.Axes {
		key := firstMatch(text, axis.Leaves)
		if key == "" {
			continue
		}
		switch axis.Name {
		case "device":
			a.Device = key
		case "process":
			a.Process = key
		case "market":
			a.Market = key
		case "industry":
			a.Industry = key
		}
		if a.Primary == "" {
			a.Primary = key
		}
	}

	if a.Primary == "" {
		a.Primary = config.GeneralField
	}
	return a, nil
}

// Section picks the latest-document section. Social items are always
// "sns"; otherwise the first keyword table that matches wins, falling
// back to "general".
func (c *Classifier) Section(item collector.Item) string {
	if item.SourceKind == collector.KindSocial || item.SourceName == "x.com" {
		return SectionSNS
	}

	text := strings.ToLower(item.Title + " " + item.Excerpt)
	switch {
	case containsAny(text, c.sections.Tech):
		return SectionTech
	case containsAny(text, c.sections.Application):
		return SectionApplication
	case containsAny(text, c.sections.Vendor):
		return SectionVendor
	default:
		return SectionGeneral
	}
}

func firstMatch(text string, leaves []config.Leaf) string {
	for _, leaf := range leaves {
		if containsAny(text, leaf.Keywords) {
			return leaf.Key
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
