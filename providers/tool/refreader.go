package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ReadReferenceInput selects one reference document by name, or lists the
// available documents when the name is empty.
type ReadReferenceInput struct {
	Name string `json:"name" jsonschema:"description=Reference document filename; leave empty to list available documents"`
}

// ReadReferenceOutput carries either the document content or the listing.
type ReadReferenceOutput struct {
	Name      string   `json:"name,omitempty"`
	Content   string   `json:"content,omitempty"`
	Available []string `json:"available,omitempty"`
}

// NewReadReference builds the read_reference tool over a reference directory.
// Only the base name of the requested file is honored, so the model cannot
// traverse out of the directory.
func NewReadReference(fs afero.Fs, dir string) (GenericTool, error) {
	return New("read_reference", func(ctx context.Context, input ReadReferenceInput) (ReadReferenceOutput, error) {
		if input.Name == "" {
			available, err := listReferences(fs, dir)
			if err != nil {
				return ReadReferenceOutput{}, err
			}
			return ReadReferenceOutput{Available: available}, nil
		}

		name := filepath.Base(input.Name)
		content, err := afero.ReadFile(fs, filepath.Join(dir, name))
		if err != nil {
			return ReadReferenceOutput{}, fmt.Errorf("tool: reading reference %q: %w", name, err)
		}
		return ReadReferenceOutput{Name: name, Content: string(content)}, nil
	}, WithDescription("Read a reference document with prompt-writing guidance, or list the available documents when called without a name."))
}

func listReferences(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("tool: listing references: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
