// Package assets embeds the prompt templates used for product description.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time so wording changes do not touch Go code.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// CatalogSystemPrompt is the system instruction for product description.
//
//go:embed prompts/catalog-system.txt
var CatalogSystemPrompt string

//go:embed prompts/catalog-image.txt
var catalogImageTemplate string

// template.Must panics on a malformed template at startup rather than at
// call time.
var catalogImageTmpl = template.Must(template.New("catalog-image").Parse(catalogImageTemplate))

// PromptData holds the dynamic data injected into prompt templates.
type PromptData struct {
	// MetadataContext is the formatted EXIF summary, or empty.
	MetadataContext string
}

// RenderCatalogImagePrompt renders the per-image user prompt.
func RenderCatalogImagePrompt(metadataContext string) string {
	var buf bytes.Buffer
	_ = catalogImageTmpl.Execute(&buf, PromptData{MetadataContext: metadataContext})
	return buf.String()
}
