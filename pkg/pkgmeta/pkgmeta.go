// Package pkgmeta describes how the RESTful web server sources are
// distributed: a static metadata record plus the mapping from each declared
// package to the directory holding its source. It only reads and renders the
// record; building or installing is left to the packaging tool.
package pkgmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoURL is the literal the descriptor carries when the project has no homepage.
const NoURL = "None"

// Descriptor is the metadata record handed to the packaging tool.
type Descriptor struct {
	Name        string            `json:"name" yaml:"name"`
	Version     string            `json:"version" yaml:"version"`
	Description string            `json:"description" yaml:"description"`
	Author      []string          `json:"author" yaml:"author"`
	AuthorEmail []string          `json:"author_email" yaml:"author_email"`
	URL         string            `json:"url" yaml:"url"`
	License     string            `json:"license" yaml:"license"`
	Packages    []string          `json:"packages" yaml:"packages"`
	PackageDir  map[string]string `json:"package_dir" yaml:"package_dir"`
}

// Default returns the built-in descriptor for the RESTful web server libraries.
func Default() Descriptor {
	return Descriptor{
		Name:        "agnos_restful_webserver",
		Version:     "0.1.0",
		Description: "Agnos RESTful Python Libraries",
		Author:      []string{"Tomer Filiba"},
		AuthorEmail: []string{"tomerf@il.ibm.com"},
		URL:         NoURL,
		License:     "Apache License 2.0",
		Packages:    []string{"agnos_restful_webserver"},
		PackageDir:  map[string]string{"agnos_restful_webserver": "src"},
	}
}

// Load reads a descriptor from a YAML or JSON file. An empty path returns Default.
func Load(path string) (Descriptor, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("open descriptor: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes descriptor bytes. ext selects the decoder; an empty ext tries YAML then JSON.
func Parse(data []byte, ext string) (Descriptor, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		ext string
		fn  func([]byte, any) error
	}{
		{ext: ".yaml", fn: yaml.Unmarshal},
		{ext: ".yml", fn: yaml.Unmarshal},
		{ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var desc Descriptor
		if err := d.fn(data, &desc); err == nil {
			return desc, nil
		}
	}
	return Descriptor{}, errors.New("descriptor format not recognized (expected YAML or JSON)")
}

// Validate reports every missing field and every package_dir entry that
// points at an undeclared package.
func (d Descriptor) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"name", d.Name},
		{"version", d.Version},
		{"description", d.Description},
		{"url", d.URL},
		{"license", d.License},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	if !hasNonEmpty(d.Author) {
		errs = append(errs, errors.New("author is required"))
	}
	if !hasNonEmpty(d.AuthorEmail) {
		errs = append(errs, errors.New("author_email is required"))
	}
	if !hasNonEmpty(d.Packages) {
		errs = append(errs, errors.New("packages must name at least one package"))
	}

	declared := make(map[string]bool, len(d.Packages))
	for _, p := range d.Packages {
		if declared[p] {
			errs = append(errs, fmt.Errorf("package %q declared twice", p))
		}
		declared[p] = true
	}
	for _, pkg := range sortedKeys(d.PackageDir) {
		if !declared[pkg] {
			errs = append(errs, fmt.Errorf("package_dir maps undeclared package %q", pkg))
		}
		if strings.TrimSpace(d.PackageDir[pkg]) == "" {
			errs = append(errs, fmt.Errorf("package_dir for %q is empty", pkg))
		}
	}
	return errors.Join(errs...)
}

// SourceDir returns the directory holding pkg's sources. Packages without a
// package_dir entry live in a directory named after the package.
func (d Descriptor) SourceDir(pkg string) string {
	if dir, ok := d.PackageDir[pkg]; ok && strings.TrimSpace(dir) != "" {
		return dir
	}
	return filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/"))
}

// CheckSourceDirs verifies each declared package's source directory exists under root.
func (d Descriptor) CheckSourceDirs(root string) error {
	var errs []error
	for _, pkg := range d.Packages {
		dir := filepath.Join(root, d.SourceDir(pkg))
		info, err := os.Stat(dir)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("package %q: %w", pkg, err))
		case !info.IsDir():
			errs = append(errs, fmt.Errorf("package %q: %s is not a directory", pkg, dir))
		}
	}
	return errors.Join(errs...)
}

// Render encodes the descriptor as "yaml" or "json".
func (d Descriptor) Render(format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		return yaml.Marshal(d)
	case "json":
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func hasNonEmpty(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
