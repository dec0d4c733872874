package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxFolderNameLength = 20
	MaxFileNameLength   = 255
	MinPasswordLength   = 8
)

var (
	folderNamePattern = regexp.MustCompile(`^[\p{L}\p{N} _\-.()]+$`)
	emailRegex        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// File validation
func ValidateFileSize(size, maxSize int64) error {
	if size < 0 {
		return fmt.Errorf("file size cannot be negative")
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", size, maxSize)
	}
	return nil
}

func ValidateFileName(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if utf8.RuneCountInString(filename) > MaxFileNameLength {
		return fmt.Errorf("filename too long (max %d characters)", MaxFileNameLength)
	}

	if !utf8.ValidString(filename) {
		return fmt.Errorf("filename contains invalid UTF-8 characters")
	}

	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be '.' or '..'")
	}

	// Check for invalid characters
	invalidChars := []string{"<", ">", ":", "\"", "|", "?", "*", "\x00", "/", "\\"}
	for _, char := range invalidChars {
		if strings.Contains(filename, char) {
			return fmt.Errorf("filename contains invalid character: %s", char)
		}
	}

	// Check for reserved names (Windows)
	reservedNames := []string{"CON", "PRN", "AUX", "NUL", "COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9", "LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9"}
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))
	for _, reserved := range reservedNames {
		if strings.EqualFold(nameWithoutExt, reserved) {
			return fmt.Errorf("filename uses reserved name: %s", reserved)
		}
	}
	return nil
}

// Folder validation
func ValidateFolderName(name string) error {
	if name == "" {
		return fmt.Errorf("folder name cannot be empty")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("folder name contains invalid UTF-8 characters")
	}

	if utf8.RuneCountInString(name) > MaxFolderNameLength {
		return fmt.Errorf("folder name too long (max %d characters)", MaxFolderNameLength)
	}

	if strings.TrimSpace(name) != name {
		return fmt.Errorf("folder name cannot start or end with whitespace")
	}

	if name == "." || name == ".." {
		return fmt.Errorf("folder name cannot be '.' or '..'")
	}

	if !folderNamePattern.MatchString(name) {
		return fmt.Errorf("folder name may only contain letters, digits, spaces and _ - . ( )")
	}

	return nil
}

// SplitRelativePath returns the folder segments of an upload's relative
// path, dropping the trailing file name. "docs/2024/a.txt" yields
// ["docs", "2024"].
func SplitRelativePath(path string) ([]string, error) {
	if err := ValidateRelativePath(path); err != nil {
		return nil, err
	}

	path = strings.ReplaceAll(path, "\\", "/")
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." || dir == "" {
		return nil, nil
	}

	var segments []string
	for _, segment := range strings.Split(dir, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments, nil
}

func ValidateRelativePath(path string) error {
	if path == "" {
		return nil // Empty path is valid (root)
	}

	// Normalize path separators
	path = strings.ReplaceAll(path, "\\", "/")

	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("relative path cannot start with '/'")
	}

	// Validate each folder segment; the last one is the file name
	segments := strings.Split(path, "/")
	for _, segment := range segments[:len(segments)-1] {
		if segment == "" {
			continue // double slashes
		}
		if err := ValidateFolderName(segment); err != nil {
			return fmt.Errorf("invalid path segment '%s': %v", segment, err)
		}
	}

	return nil
}

// Email validation
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
