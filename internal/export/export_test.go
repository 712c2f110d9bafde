package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/fpang/product-catalog/internal/catalog"
)

func sampleReport() catalog.BatchReport {
	return catalog.BatchReport{
		TotalCount:     2,
		CompletedCount: 1,
		FailedCount:    1,
		Items: []catalog.ItemOutcome{
			catalog.Completed("mug.jpg", catalog.ProductFields{
				ProductName: "Ceramic Mug",
				Description: "A sturdy mug.",
				Features:    []string{"Dishwasher safe", "Holds 350ml"},
				Dimensions:  "10 x 8 cm",
				Materials:   "Stoneware",
				Categories:  []string{"Kitchen", "Drinkware"},
			}, "https://cdn.example/mug.jpg", 1200),
			catalog.Failed("lamp.jpg", "describe: 503 overloaded", 900),
		},
	}
}

func TestRows_Bullets(t *testing.T) {
	rows := Rows(sampleReport())
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	want := [BulletPoints]string{
		"Dishwasher safe",
		"Holds 350ml",
		"Dimensions: 10 x 8 cm",
		"Materials: Stoneware",
		"Categories: Kitchen, Drinkware",
	}
	if rows[0].Bullets != want {
		t.Errorf("bullets = %q", rows[0].Bullets)
	}
	if rows[1].Status != "failed" || rows[1].Error == "" || rows[1].ProductName != "" {
		t.Errorf("failed row = %+v", rows[1])
	}
}

func TestRows_BulletsTruncated(t *testing.T) {
	r := catalog.BatchReport{Items: []catalog.ItemOutcome{
		catalog.Completed("x", catalog.ProductFields{
			Features:   []string{"a", "b", "c"},
			Dimensions: "d",
			Materials:  "m",
			Categories: []string{"c1"},
		}, "", 0),
	}}
	got := Rows(r)[0].Bullets
	if got[4] != "Materials: m" {
		t.Errorf("last bullet = %q", got[4])
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if strings.Join(records[0], "|") != strings.Join(Columns, "|") {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "mug.jpg" || records[1][9] != "1200" || records[1][10] != "completed" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[2][11] != "describe: 503 overloaded" {
		t.Errorf("row 2 error = %q", records[2][11])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["total"] != float64(2) || len(got["data"].([]any)) != 2 {
		t.Errorf("json = %s", buf.String())
	}
}

func TestWriteParquet(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParquet(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}
	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatal("output is not a parquet file")
	}

	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(data), nil, 1)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer pr.ReadStop()
	if n := pr.GetNumRows(); n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"parquet", FormatParquet, false},
		{"catalogue.parquet", FormatParquet, false},
		{"out/report.json", FormatJSON, false},
		{"xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
