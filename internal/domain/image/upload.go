package image

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/photodex/internal/domain"
)

// MaxFileSize is the upload size limit in bytes.
const MaxFileSize = 10 * 1024 * 1024

// MaxTagLength is the per-tag rune limit.
const MaxTagLength = 50

// MaxLocationLength is the user location rune limit.
const MaxLocationLength = 255

var (
	allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	tagRegex          = regexp.MustCompile(`^[가-힣A-Za-z0-9\s]+$`)
)

// AllowedExtension reports whether the filename carries an accepted image extension.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ValidateFile checks the upload name and size.
func ValidateFile(filename string, size int64) error {
	if !AllowedExtension(filename) {
		return domain.NewValidationError(
			"file type not allowed: %q (allowed: .jpg, .jpeg, .png)", filepath.Ext(filename))
	}
	if size > MaxFileSize {
		return domain.NewValidationError("file too large: max %dMB", MaxFileSize/(1024*1024))
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return domain.NewValidationError("invalid file name")
	}
	return nil
}

// ParseTags splits comma-separated input, trims entries, drops empties and duplicates,
// and validates each tag.
func ParseTags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	seen := make(map[string]bool)
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, domain.NewValidationError("tag %q too long: max %d characters", tag, MaxTagLength)
		}
		if !tagRegex.MatchString(tag) {
			return nil, domain.NewValidationError("tag %q contains characters that are not allowed", tag)
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags, nil
}

// ValidateLocation checks the user location length.
func ValidateLocation(location string) error {
	if utf8.RuneCountInString(location) > MaxLocationLength {
		return domain.NewValidationError("location too long: max %d characters", MaxLocationLength)
	}
	return nil
}
