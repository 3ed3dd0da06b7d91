package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/nicolive-tools/ndgr-downloader/internal/download"
)

// FormatSuccessMessage builds the body for a completed batch download.
func FormatSuccessMessage(result *download.BatchResult, duration time.Duration) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Channels: %d\n", result.Total))
	sb.WriteString(fmt.Sprintf("Downloaded: %d\n", result.Success))
	if result.Empty > 0 {
		sb.WriteString(fmt.Sprintf("Empty: %d\n", result.Empty))
	}
	sb.WriteString(fmt.Sprintf("Comments: %d\n", result.Comments))
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))
	return sb.String()
}

// FormatFailureMessage builds the body for a batch with failures.
func FormatFailureMessage(result *download.BatchResult, duration time.Duration, err error) string {
	var sb strings.Builder
	if err != nil {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
	}
	if result != nil {
		sb.WriteString(fmt.Sprintf("Channels: %d\n", result.Total))
		sb.WriteString(fmt.Sprintf("Downloaded: %d\n", result.Success))
		sb.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
		for i, e := range result.Errors {
			if i >= 5 {
				sb.WriteString(fmt.Sprintf("... and %d more\n", len(result.Errors)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("  %s\n", e))
		}
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))
	return sb.String()
}
