// Package logname generates timestamped, filesystem-safe log filenames:
// {prefix_}YYYYMMDD_HHMMSS{_partNNN}.{ext}.
package logname

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// unsafeChars are reserved on Windows, problematic elsewhere, or just a
// space; stripped from a prefix outright.
var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f ]`)

// repeatedSeparators collapses runs of underscore/hyphen left behind after
// stripping unsafe characters.
var repeatedSeparators = regexp.MustCompile(`[_\-]{2,}`)

// unsafeExtensionChars is anything not alphanumeric; extensions are
// restricted to alphanumerics to block path traversal via extension.
var unsafeExtensionChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizePrefix removes filesystem-unsafe characters, collapses repeated
// separators, and trims leading/trailing spaces and dots.
func SanitizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	sanitized := unsafeChars.ReplaceAllString(prefix, "")
	sanitized = repeatedSeparators.ReplaceAllString(sanitized, "_")
	return strings.Trim(sanitized, " .")
}

// SanitizeExtension strips leading dots and any non-alphanumeric character.
func SanitizeExtension(extension string) string {
	ext := strings.TrimLeft(extension, ".")
	return unsafeExtensionChars.ReplaceAllString(ext, "")
}

// GenerateFilename builds a timestamped filename. partNumber of 0 means
// "no part suffix"; otherwise it must be in [1, 999].
func GenerateFilename(extension, prefix string, timestamp time.Time, partNumber int) (string, error) {
	if partNumber != 0 && (partNumber < 1 || partNumber > 999) {
		return "", fmt.Errorf("logname: part number must be between 1 and 999, got %d", partNumber)
	}

	timeStr := timestamp.UTC().Format("20060102_150405")
	safePrefix := SanitizePrefix(prefix)

	var parts []string
	if safePrefix != "" {
		parts = append(parts, safePrefix)
	}
	parts = append(parts, timeStr)
	if partNumber != 0 {
		parts = append(parts, fmt.Sprintf("part%03d", partNumber))
	}

	ext := SanitizeExtension(extension)
	if ext == "" {
		return "", fmt.Errorf("logname: extension cannot be empty")
	}

	return strings.Join(parts, "_") + "." + ext, nil
}

// GenerateFilepath joins GenerateFilename's result onto outputDirectory.
func GenerateFilepath(outputDirectory, extension, prefix string, timestamp time.Time, partNumber int) (string, error) {
	name, err := GenerateFilename(extension, prefix, timestamp, partNumber)
	if err != nil {
		return "", err
	}
	return filepath.Join(outputDirectory, name), nil
}

// PreviewFilename shows the filename format with a placeholder timestamp,
// without committing to a specific time or validating part numbers.
func PreviewFilename(extension, prefix string) string {
	safePrefix := SanitizePrefix(prefix)

	var parts []string
	if safePrefix != "" {
		parts = append(parts, safePrefix)
	}
	parts = append(parts, "YYYYMMDD_HHMMSS")

	ext := SanitizeExtension(extension)
	return strings.Join(parts, "_") + "." + ext
}
