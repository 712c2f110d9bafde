package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Binary size units.
const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", GiB},
	{"MB", MiB},
	{"KB", KiB},
	{"B", 1},
}

// ParseSize parses sizes such as "8MB", "400 mb", "512KB" or a bare byte
// count. Units are binary (1MB = 1024*1024 bytes).
func ParseSize(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(v, u.suffix) {
			mult = u.mult
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return int64(math.Round(f * float64(mult))), nil
}

// FormatSize renders a byte count with the largest fitting unit, e.g. "8 MB".
func FormatSize(n int64) string {
	if n < KiB {
		return fmt.Sprintf("%d B", n)
	}
	for _, u := range sizeUnits {
		if n >= u.mult {
			f := float64(n) / float64(u.mult)
			if f == math.Trunc(f) {
				return fmt.Sprintf("%d %s", int64(f), u.suffix)
			}
			return fmt.Sprintf("%.2f %s", f, u.suffix)
		}
	}
	return fmt.Sprintf("%d B", n)
}
