// Package keys derives and decodes the object-store keys that tie uploads,
// status records, and results together. The result key is the only join
// between a polling client and its artifact, so encoding and decoding must
// round-trip exactly.
package keys

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// ResultKeys holds the derived result locations for one job.
type ResultKeys struct {
	Markdown string
	HTML     string
}

// Sanitize strips every character outside [A-Za-z0-9] from the name portion
// of filename and lower-cases the extension, keeping the separator.
// "foo-bar 2024.PDF" becomes "foobar2024.pdf". An input whose name part has
// no alphanumeric characters sanitizes to just the extension; a fully
// unusable input yields "" and must be rejected by the caller.
func Sanitize(filename string) string {
	if filename == "" {
		return ""
	}
	ext := path.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + strings.ToLower(ext)
}

// UploadKey derives the deterministic upload location for a job.
func UploadKey(jobID, targetLang, sanitizedName, datePrefix string) string {
	return fmt.Sprintf("uploads/%s/%s/%s/%s", datePrefix, jobID, targetLang, sanitizedName)
}

// ResultKeysFor derives the markdown and HTML result keys for a job. The
// sanitized name must carry an extension; it is folded into the base name
// with an underscore ("report.png" -> "report_png") so the key stays a
// single path segment.
func ResultKeysFor(jobID, sanitizedName, datePrefix string) (ResultKeys, error) {
	ext := path.Ext(sanitizedName)
	if ext == "" {
		return ResultKeys{}, fmt.Errorf("%w: filename %q has no extension", models.ErrInvalidInput, sanitizedName)
	}
	name := strings.TrimSuffix(sanitizedName, ext)
	if jobID == "" || name == "" || datePrefix == "" {
		return ResultKeys{}, fmt.Errorf("%w: jobID=%q name=%q datePrefix=%q", models.ErrInvalidInput, jobID, sanitizedName, datePrefix)
	}
	base := name + "_" + ext[1:]
	return ResultKeys{
		Markdown: fmt.Sprintf("results/%s/%s/%s_result.md", datePrefix, jobID, base),
		HTML:     fmt.Sprintf("results/%s/%s/%s_result.html", datePrefix, jobID, base),
	}, nil
}

// DecodeResultKey parses a location of the form
// results/{date_prefix}/{job_id}/{base_name}_result.(md|html). ok is false
// for paths with fewer than four segments or an unexpected suffix.
func DecodeResultKey(location string) (datePrefix, jobID, baseName string, ok bool) {
	parts := strings.Split(location, "/")
	if len(parts) < 4 {
		return "", "", "", false
	}
	leaf := parts[3]
	if !strings.HasSuffix(leaf, ".md") && !strings.HasSuffix(leaf, ".html") {
		return "", "", "", false
	}
	base := leaf
	if idx := strings.LastIndex(leaf, "_result"); idx >= 0 {
		base = leaf[:idx]
	}
	return parts[1], parts[2], base, true
}

// ReconstructFilename inverts the extension folding done by ResultKeysFor:
// "report_png" becomes "report.png". Only the last underscore is split, and
// a base name without one is returned unchanged; no extension is ever
// guessed.
func ReconstructFilename(baseName string) string {
	idx := strings.LastIndex(baseName, "_")
	if idx < 0 {
		return baseName
	}
	return baseName[:idx] + "." + baseName[idx+1:]
}

// DatePrefix renders t as a lowercase "jan-02-06" style prefix, grouping a
// day's jobs under one path segment.
func DatePrefix(t time.Time) string {
	return strings.ToLower(t.Format("Jan-02-06"))
}
