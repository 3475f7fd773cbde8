package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	UsernameMatcher  = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]{0,62}[a-zA-Z0-9])?$`)
	TitleSortMatcher = regexp.MustCompile(`^(A|The|An|Der|Die|Das|Den|Ein|Eine|Einen|Dem|Des|Einem|Eines|Le|La|Les|L\'|Un|Une)\s+`)
	authorSuffix     = regexp.MustCompile(`^(JR|SR|I{1,3}|IV)\.?$`)
)

// ValidUsername reports whether name is safe to use as a directory name.
func ValidUsername(name string) bool {
	return UsernameMatcher.MatchString(name)
}

// TitleSort moves a leading article to the end: "The Hobbit" -> "Hobbit, The".
func TitleSort(title string) string {
	match := TitleSortMatcher.FindStringSubmatch(title)
	if match != nil {
		prep := match[1]
		title = strings.TrimSpace(strings.TrimPrefix(title, prep)) + ", " + prep
	}
	return strings.TrimSpace(title)
}

// GetSortedAuthor turns "Charles Dickens" into "Dickens, Charles", keeping
// generational suffixes with the given names. Names that already contain a
// comma are returned unchanged.
func GetSortedAuthor(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, ",") {
		return value
	}
	values := strings.Fields(value)
	if len(values) == 1 {
		return values[0]
	}

	last := values[len(values)-1]
	if authorSuffix.MatchString(strings.ToUpper(last)) && len(values) > 2 {
		return values[len(values)-2] + ", " + strings.Join(values[:len(values)-2], " ") + " " + last
	}
	return last + ", " + strings.Join(values[:len(values)-1], " ")
}

// GenerateNewFileName returns filePath, or filePath with a numeric suffix
// when a file with that name already exists.
func GenerateNewFileName(filePath string) string {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return filePath
	}

	dir := filepath.Dir(filePath)
	ext := filepath.Ext(filePath)
	fileName := strings.TrimSuffix(filepath.Base(filePath), ext)

	existingFiles, err := filepath.Glob(filepath.Join(dir, fileName+"_*[0-9]"+ext))
	if err != nil {
		return filePath
	}

	index := 1
	for _, existingFile := range existingFiles {
		existingName := strings.TrimSuffix(filepath.Base(existingFile), ext)
		suffix := existingName[strings.LastIndex(existingName, "_")+1:]
		if existingIndex, err := strconv.Atoi(suffix); err == nil && existingIndex >= index {
			index = existingIndex + 1
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", fileName, index, ext))
}
