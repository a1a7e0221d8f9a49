package camelshdf5

import (
	"strings"
	"time"
)

// filenameReplacer maps characters that are unsafe in file names.
var filenameReplacer = strings.NewReplacer(
	" ", "_",
	".", "_",
	":", "-",
	"/", "-",
	"\\", "-",
	"?", "_",
	"*", "_",
	"<", "_smaller_",
	">", "_greater_",
	"|", "-",
	`"`, "_quote_",
)

// CleanFilename removes characters that are not allowed in file names,
// replacing them with safe equivalents.
func CleanFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// segmentReplacer maps characters that are illegal or ambiguous inside an
// HDF5 path segment. Dots are the historically problematic case: a dotted
// metadata key would otherwise split the path.
var segmentReplacer = strings.NewReplacer(
	".", "_",
	"/", "_",
	"\\", "_",
	" ", "_",
)

// sanitizeSegment makes a metadata key safe for use as a single HDF5
// group or dataset name.
func sanitizeSegment(key string) string {
	key = strings.TrimSpace(key)
	return segmentReplacer.Replace(key)
}

// isoTime renders a float Unix timestamp (seconds) as a local ISO 8601
// string, matching the host framework's time rendering.
func isoTime(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Format(time.RFC3339)
}
