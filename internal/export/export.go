// Package export renders a BatchReport as a spreadsheet-style table in CSV,
// Parquet, or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fpang/product-catalog/internal/catalog"
)

// BulletPoints is the number of bullet columns in the table.
const BulletPoints = 5

// Columns is the header row, in output order.
var Columns = []string{
	"Image Name",
	"Image URL",
	"Product Name",
	"Description",
	"Bullet Point 1",
	"Bullet Point 2",
	"Bullet Point 3",
	"Bullet Point 4",
	"Bullet Point 5",
	"Processing Time (ms)",
	"Status",
	"Error",
}

// Row is one flattened outcome.
type Row struct {
	ImageName        string               `json:"imageName"`
	ImageURL         string               `json:"imageUrl"`
	ProductName      string               `json:"productName"`
	Description      string               `json:"description"`
	Bullets          [BulletPoints]string `json:"bulletPoints"`
	ProcessingTimeMs int64                `json:"processingTime"`
	Status           string               `json:"status"`
	Error            string               `json:"error"`
}

// Values returns the row in Columns order.
func (r Row) Values() []string {
	out := make([]string, 0, len(Columns))
	out = append(out, r.ImageName, r.ImageURL, r.ProductName, r.Description)
	out = append(out, r.Bullets[:]...)
	return append(out, strconv.FormatInt(r.ProcessingTimeMs, 10), r.Status, r.Error)
}

// Rows flattens report in order. Bullets are the features followed by the
// dimensions, materials and categories, until the five columns are full.
func Rows(report catalog.BatchReport) []Row {
	rows := make([]Row, 0, len(report.Items))
	for _, o := range report.Items {
		row := Row{
			ImageName:        o.ImageName,
			ImageURL:         o.StorageRef,
			ProcessingTimeMs: o.ProcessingTimeMs,
			Status:           o.Status.String(),
			Error:            o.ErrorMessage,
		}
		if f := o.Fields; f != nil {
			row.ProductName = f.ProductName
			row.Description = f.Description
			row.Bullets = bullets(*f)
		}
		rows = append(rows, row)
	}
	return rows
}

func bullets(f catalog.ProductFields) [BulletPoints]string {
	var candidates []string
	for _, feat := range f.Features {
		if s := strings.TrimSpace(feat); s != "" {
			candidates = append(candidates, s)
		}
	}
	if f.Dimensions != "" {
		candidates = append(candidates, "Dimensions: "+f.Dimensions)
	}
	if f.Materials != "" {
		candidates = append(candidates, "Materials: "+f.Materials)
	}
	if len(f.Categories) > 0 {
		candidates = append(candidates, "Categories: "+strings.Join(f.Categories, ", "))
	}
	var out [BulletPoints]string
	copy(out[:], candidates)
	return out
}

// WriteCSV writes a header row and one row per outcome.
func WriteCSV(w io.Writer, report catalog.BatchReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range Rows(report) {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report catalog.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// Format is an export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// ParseFormat accepts a format name or a file name with a known extension.
// An empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if ext := filepath.Ext(s); ext != "" {
		s = strings.TrimPrefix(ext, ".")
	}
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "parquet", "pq":
		return FormatParquet, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the HTTP media type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatParquet:
		return "application/vnd.apache.parquet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Write encodes report in format f.
func Write(w io.Writer, f Format, report catalog.BatchReport) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, report)
	case FormatParquet:
		return WriteParquet(w, report)
	case FormatJSON:
		return WriteJSON(w, report)
	}
	return fmt.Errorf("unknown export format %q", f)
}
