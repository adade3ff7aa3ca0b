// Package manifest reads and writes the project manifest: a UTF-8 file
// with a delimited YAML metadata block followed by a free-form body.
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// Filename is the manifest's name at the project root. Scans exclude it.
const Filename = "project.fablecast"

// delimiter separates the metadata block from the body.
const delimiter = "---"

// Metadata is the parsed front-matter block. The planner reads its resolved
// generation fields; everything else is free-form project description.
type Metadata struct {
	Title        string   `yaml:"title,omitempty"`
	EpisodesDir  string   `yaml:"episodes_dir,omitempty"`
	OutputDir    string   `yaml:"output_dir,omitempty"`
	Patterns     []string `yaml:"patterns,omitempty"`
	ExportFormat string   `yaml:"export_format,omitempty"`
	CastList     string   `yaml:"cast_list,omitempty"`
	PreHook      string   `yaml:"pre_generate_hook,omitempty"`
	PostHook     string   `yaml:"post_generate_hook,omitempty"`
}

// Parse splits source into metadata and body. A source without a leading
// delimiter line is all body; an opened but unterminated block is an error.
func Parse(source []byte) (Metadata, string, error) {
	text := strings.ReplaceAll(string(source), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		return Metadata{}, text, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return Metadata{}, "", fmt.Errorf("unterminated metadata block")
	}

	block := strings.Join(lines[1:end], "\n")
	var meta Metadata
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return Metadata{}, "", fmt.Errorf("parse metadata block: %w", err)
	}

	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")
	return meta, body, nil
}

// Generate renders metadata and body back into manifest source.
func Generate(meta Metadata, body string) ([]byte, error) {
	block, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("generate metadata block: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(block)
	buf.WriteString(delimiter + "\n")
	if body != "" {
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// Load reads and parses the manifest at the project root.
func Load(fsys billy.Filesystem, root string) (Metadata, string, error) {
	source, err := util.ReadFile(fsys, fsys.Join(root, Filename))
	if err != nil {
		return Metadata{}, "", fmt.Errorf("read manifest: %w", err)
	}
	return Parse(source)
}
