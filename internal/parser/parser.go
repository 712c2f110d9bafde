// Package parser turns free-form model output into catalog.ProductFields.
//
// Two response shapes are understood. A JSON object (optionally wrapped in
// markdown fences or prose) is preferred. Otherwise the labelled-line
// grammar is used:
//
//	Product Name: <text>
//	Description: <text>
//	Features:
//	- <feature>
//	Dimensions: <text>
//	Materials: <text>
//	Categories: <a>, <b>     (or "- " bullets on following lines)
//
// Missing fields fall back to fixed placeholder values so every completed
// item has a full set of columns.
package parser

import (
	"strings"

	"github.com/fpang/product-catalog/internal/catalog"
)

// Placeholder values used when a field is absent from the response.
const (
	PendingProductName = "Product name pending"
	PendingDescription = "Description pending"
	PendingFeature     = "Feature pending"
	PendingDimensions  = "Dimensions pending"
	PendingMaterials   = "Materials pending"
	PendingCategory    = "Category pending"
)

type label int

const (
	labelNone label = iota
	labelProductName
	labelDescription
	labelFeatures
	labelDimensions
	labelMaterials
	labelCategories
)

var labels = []struct {
	prefix string
	kind   label
}{
	{"product name:", labelProductName},
	{"description:", labelDescription},
	{"features:", labelFeatures},
	{"dimensions:", labelDimensions},
	{"materials:", labelMaterials},
	{"categories:", labelCategories},
}

// Parse extracts product fields from a model response. It never fails:
// unparseable input yields all placeholders.
func Parse(text string) catalog.ProductFields {
	if f, ok := parseJSON(text); ok {
		return Normalize(f)
	}
	return Normalize(parseLabelled(text))
}

func parseLabelled(text string) catalog.ProductFields {
	var f catalog.ProductFields
	section := labelNone

	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}

		if kind, rest, ok := matchLabel(line); ok {
			section = kind
			switch kind {
			case labelProductName:
				f.ProductName = rest
			case labelDescription:
				f.Description = rest
			case labelDimensions:
				f.Dimensions = rest
			case labelMaterials:
				f.Materials = rest
			case labelCategories:
				f.Categories = append(f.Categories, splitList(rest)...)
			case labelFeatures:
				if rest != "" {
					f.Features = append(f.Features, rest)
				}
			}
			continue
		}

		item, isBullet := bullet(line)
		if !isBullet {
			section = labelNone
			continue
		}
		switch section {
		case labelFeatures:
			f.Features = append(f.Features, item)
		case labelCategories:
			f.Categories = append(f.Categories, item)
		}
	}
	return f
}

// cleanLine strips whitespace and markdown emphasis/heading markers.
func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "# ")
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

func matchLabel(line string) (label, string, bool) {
	lower := strings.ToLower(line)
	for _, l := range labels {
		if strings.HasPrefix(lower, l.prefix) {
			return l.kind, strings.TrimSpace(line[len(l.prefix):]), true
		}
	}
	return labelNone, "", false
}

func bullet(line string) (string, bool) {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize trims every field, drops blank list entries, caps features at
// catalog.MaxFeatures, and fills placeholders for anything missing.
func Normalize(f catalog.ProductFields) catalog.ProductFields {
	f.ProductName = orDefault(f.ProductName, PendingProductName)
	f.Description = orDefault(f.Description, PendingDescription)
	f.Dimensions = orDefault(f.Dimensions, PendingDimensions)
	f.Materials = orDefault(f.Materials, PendingMaterials)

	f.Features = compact(f.Features)
	if len(f.Features) == 0 {
		f.Features = []string{PendingFeature, PendingFeature, PendingFeature}
	}
	if len(f.Features) > catalog.MaxFeatures {
		f.Features = f.Features[:catalog.MaxFeatures]
	}

	f.Categories = compact(f.Categories)
	if len(f.Categories) == 0 {
		f.Categories = []string{PendingCategory}
	}
	return f
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
