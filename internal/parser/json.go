package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fpang/product-catalog/internal/catalog"
)

// stringList accepts either a JSON array of strings or a single
// comma-separated string, since models return both.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected string or array: %w", err)
	}
	*l = splitList(s)
	return nil
}

type jsonFields struct {
	ProductName string     `json:"productName"`
	Description string     `json:"description"`
	Features    stringList `json:"features"`
	Dimensions  string     `json:"dimensions"`
	Materials   string     `json:"materials"`
	Categories  stringList `json:"categories"`
}

func parseJSON(text string) (catalog.ProductFields, bool) {
	raw, err := ExtractJSON(StripMarkdownFences(text))
	if err != nil || !strings.HasPrefix(raw, "{") {
		return catalog.ProductFields{}, false
	}
	var jf jsonFields
	if err := json.Unmarshal([]byte(raw), &jf); err != nil {
		return catalog.ProductFields{}, false
	}
	f := catalog.ProductFields{
		ProductName: jf.ProductName,
		Description: jf.Description,
		Features:    jf.Features,
		Dimensions:  jf.Dimensions,
		Materials:   jf.Materials,
		Categories:  jf.Categories,
	}
	if f.ProductName == "" && f.Description == "" && len(f.Features) == 0 {
		return f, false
	}
	return f, true
}

// StripMarkdownFences removes a ```json ... ``` (or bare ```) wrapper.
// Text without an opening fence is returned trimmed.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// ExtractJSON returns the span from the first '{' or '[' to the last
// matching closer.
func ExtractJSON(text string) (string, error) {
	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	if obj == -1 && arr == -1 {
		return "", fmt.Errorf("no JSON content found")
	}
	start, closer := obj, "}"
	if obj == -1 || (arr != -1 && arr < obj) {
		start, closer = arr, "]"
	}
	text = text[start:]
	end := strings.LastIndex(text, closer)
	if end == -1 {
		return "", fmt.Errorf("no closing %s found", closer)
	}
	return text[:end+1], nil
}
