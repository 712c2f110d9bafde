// Package cli holds the interactive helpers shared by the catalogue
// command-line tools.
package cli

import (
	"fmt"
	"time"

	"github.com/fpang/product-catalog/internal/pipeline"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatProgress renders one progress line, e.g.
// "[group 2/5] 200/500 processed (198 ok, 2 failed) 1:07".
func FormatProgress(p pipeline.Progress, elapsed time.Duration) string {
	return fmt.Sprintf("[group %d/%d] %d/%d processed (%d ok, %d failed) %s",
		p.Group, p.Groups, p.Processed, p.Total, p.Completed, p.Failed, FormatDurationShort(elapsed))
}
