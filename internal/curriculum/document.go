package curriculum

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a registry. It can be a single file holding
// every section, or a directory laid out as
//
//	curriculum.yaml   (optional: defaultEntity)
//	domains/*.yaml    (one DomainDoc each)
//	menus/*.yaml      (one EntityDoc each)
//	lessons/*.yaml    (one EntityDoc each)
type Document struct {
	DefaultEntity int64       `yaml:"defaultEntity"`
	Domains       []DomainDoc `yaml:"domains"`
	Menus         []EntityDoc `yaml:"menus"`
	Lessons       []EntityDoc `yaml:"lessons"`
}

// DomainDoc declares a domain.
type DomainDoc struct {
	ID    int64  `yaml:"id"`
	Title string `yaml:"title"`
}

// EntityDoc declares a menu or lesson.
type EntityDoc struct {
	Metadata EntityMetadata `yaml:"metadata"`
	Pages    []PageDoc      `yaml:"pages"`
}

// EntityMetadata holds an entity's identity.
type EntityMetadata struct {
	ID               int64  `yaml:"id"`
	Title            string `yaml:"title"`
	DomainID         int64  `yaml:"domainId,omitempty"`
	Difficulty       string `yaml:"difficulty,omitempty"`
	EstimatedMinutes int    `yaml:"estimatedMinutes,omitempty"`
}

// PageDoc lists the components on one page.
type PageDoc struct {
	Components []ComponentDoc `yaml:"components"`
}

// ComponentDoc places one component.
type ComponentDoc struct {
	ID     int64          `yaml:"id"`
	Type   string         `yaml:"type"`
	Order  int            `yaml:"order"`
	Config map[string]any `yaml:"config,omitempty"`
}

// Parse decodes a single-file registry document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return &doc, nil
}

// ReadDocument reads a registry from a file or a directory.
func ReadDocument(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat registry: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read registry: %w", err)
		}
		return Parse(data)
	}
	return readDir(path)
}

func readDir(dir string) (*Document, error) {
	doc := &Document{}

	top := filepath.Join(dir, "curriculum.yaml")
	if data, err := os.ReadFile(top); err == nil {
		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", top, err)
		}
		doc = parsed
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", top, err)
	}

	domains, err := readAll[DomainDoc](filepath.Join(dir, "domains"))
	if err != nil {
		return nil, err
	}
	menus, err := readAll[EntityDoc](filepath.Join(dir, "menus"))
	if err != nil {
		return nil, err
	}
	lessons, err := readAll[EntityDoc](filepath.Join(dir, "lessons"))
	if err != nil {
		return nil, err
	}
	doc.Domains = append(doc.Domains, domains...)
	doc.Menus = append(doc.Menus, menus...)
	doc.Lessons = append(doc.Lessons, lessons...)
	return doc, nil
}

// readAll decodes every *.yaml file in dir in name order. A missing
// directory yields nothing.
func readAll[T any](dir string) ([]T, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	slices.Sort(paths)

	out := make([]T, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var item T
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Load reads and builds a registry from path.
func Load(path string) (*Static, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	reg, err := Build(doc)
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			be.Source = path
		}
		return nil, err
	}
	return reg, nil
}
