package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/charmbracelet/log"
)

// FileFormat represents the dictionary file formats understood by the loader
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatBinary             // msgpack model file
	FormatText               // tab or space separated records
	FormatYAML               // `words:` list of records
)

// Names of the files searched for inside a model directory, by priority.
const (
	ModelBinaryName = "morph.bin"
	ModelTextName   = "base.dict"
)

// FormatInfo contains metadata about a dictionary file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatBinary: {
		Format:      FormatBinary,
		Description: "Binary Model",
		Extensions:  []string{".bin"},
		MinSize:     8,
	},
	FormatText: {
		Format:      FormatText,
		Description: "Text Dictionary",
		Extensions:  []string{".txt", ".dict", ".tsv"},
		MinSize:     0,
	},
	FormatYAML: {
		Format:      FormatYAML,
		Description: "YAML Dictionary",
		Extensions:  []string{".yaml", ".yml"},
		MinSize:     0,
	},
}

func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "Unknown"
}

// ValidateFileFormat checks if a file matches the expected format
func ValidateFileFormat(filename string, expectedFormat FileFormat) error {
	fileInfo, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", morph.ErrIO, filename, err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", morph.ErrInvalidArgument, filename)
	}

	formatInfo, exists := supportedFormats[expectedFormat]
	if !exists {
		return fmt.Errorf("%w: unknown format %v", morph.ErrInvalidArgument, expectedFormat)
	}

	if fileInfo.Size() < formatInfo.MinSize {
		return fmt.Errorf("%w: file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			morph.ErrDictionaryParse, filename, fileInfo.Size(), formatInfo.Description, formatInfo.MinSize)
	}

	log.Debugf("File %s validated as %s", filename, formatInfo.Description)
	return nil
}

// DetectFileFormat picks a format from the file extension. Anything that is
// not binary or YAML is read as text.
func DetectFileFormat(filename string) FileFormat {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range []FileFormat{FormatBinary, FormatYAML} {
		for _, e := range supportedFormats[format].Extensions {
			if ext == e {
				return format
			}
		}
	}
	return FormatText
}

// FindModelFile returns the model file inside dir, preferring the binary form.
func FindModelFile(dir string) (string, FileFormat, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", FormatUnknown, fmt.Errorf("%w: model directory: %w", morph.ErrIO, err)
	}
	if !info.IsDir() {
		return "", FormatUnknown, fmt.Errorf("%w: model path %s is not a directory", morph.ErrInvalidArgument, dir)
	}
	for _, candidate := range []struct {
		name   string
		format FileFormat
	}{
		{ModelBinaryName, FormatBinary},
		{ModelTextName, FormatText},
	} {
		path := filepath.Join(dir, candidate.name)
		if _, err := os.Stat(path); err == nil {
			return path, candidate.format, nil
		}
	}
	return "", FormatUnknown, fmt.Errorf("%w: no %s or %s in %s", morph.ErrIO, ModelBinaryName, ModelTextName, dir)
}
