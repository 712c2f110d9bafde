package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

type member struct {
	name string
	body string
	zstd bool
}

func buildZip(t *testing.T, members []member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	for _, m := range members {
		method := zip.Deflate
		if m.zstd {
			method = zstd.ZipMethodWinZip
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", m.name, err)
		}
		if _, err := w.Write([]byte(m.body)); err != nil {
			t.Fatalf("write %s: %v", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExpand_FiltersNonImages(t *testing.T) {
	data := buildZip(t, []member{
		{name: "front.jpg", body: "jpeg-bytes"},
		{name: "notes.txt", body: "hello"},
		{name: "nested/side.PNG", body: "png-bytes"},
	})
	items, err := ExpandAll(data, Options{})
	if err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].FileName != "front.jpg" || items[0].MIMEType != "image/jpeg" || string(items[0].Data) != "jpeg-bytes" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].FileName != "side.PNG" || items[1].MIMEType != "image/png" {
		t.Errorf("item 1 = %+v", items[1])
	}
}

func TestExpand_SkipsDirectoriesAndResourceForks(t *testing.T) {
	data := buildZip(t, []member{
		{name: "photos/"},
		{name: "__MACOSX/photos/._a.jpg", body: "junk"},
		{name: "photos/._b.jpg", body: "junk"},
		{name: "photos/a.jpg", body: "a"},
	})
	items, err := ExpandAll(data, Options{})
	if err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if len(items) != 1 || items[0].FileName != "a.jpg" {
		t.Errorf("items = %+v", items)
	}
}

func TestExpand_DropsOversizedMembers(t *testing.T) {
	data := buildZip(t, []member{
		{name: "small.jpg", body: "1234"},
		{name: "big.jpg", body: strings.Repeat("x", 64)},
	})
	items, err := ExpandAll(data, Options{MaxMemberSize: 10})
	if err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if len(items) != 1 || items[0].FileName != "small.jpg" {
		t.Errorf("items = %+v", items)
	}
}

func TestExpand_Zstandard(t *testing.T) {
	data := buildZip(t, []member{
		{name: "z.jpg", body: "zstd-compressed", zstd: true},
	})
	items, err := ExpandAll(data, Options{})
	if err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if len(items) != 1 || string(items[0].Data) != "zstd-compressed" {
		t.Errorf("items = %+v", items)
	}
}

func TestExpand_Corrupt(t *testing.T) {
	_, err := Expand([]byte("definitely not a zip"), Options{})
	if !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("expected ErrArchiveCorrupt, got %v", err)
	}
}

func TestExpand_IsLazy(t *testing.T) {
	data := buildZip(t, []member{
		{name: "1.jpg", body: "1"},
		{name: "2.jpg", body: "2"},
		{name: "3.jpg", body: "3"},
	})
	seq, err := Expand(data, Options{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	var seen []string
	for item := range seq {
		seen = append(seen, item.FileName)
		if len(seen) == 2 {
			break
		}
	}
	if len(seen) != 2 {
		t.Errorf("early break yielded %v", seen)
	}
}

func TestExpand_CustomFilter(t *testing.T) {
	data := buildZip(t, []member{
		{name: "a.jpg", body: "a"},
		{name: "b.webp", body: "b"},
	})
	items, err := ExpandAll(data, Options{Filter: func(name string) bool { return strings.HasSuffix(name, ".webp") }})
	if err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	if len(items) != 1 || items[0].FileName != "b.webp" {
		t.Errorf("items = %+v", items)
	}
}
