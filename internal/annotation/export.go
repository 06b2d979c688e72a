package annotation

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportFilename is the file name for an export of dialogID in format.
func ExportFilename(dialogID, format string) string {
	safe := strings.Trim(unsafeFilename.ReplaceAllString(dialogID, "_"), "_")
	if safe == "" {
		safe = "dialog"
	}
	return fmt.Sprintf("%s_export.%s", safe, format)
}
