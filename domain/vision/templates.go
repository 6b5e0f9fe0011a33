package vision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

var templateExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Template is a named reference image with both precomputed representations.
// Intensity and Edges always share dimensions.
type Template struct {
	Name      string
	Path      string
	Intensity gocv.Mat
	Edges     gocv.Mat
}

// Size returns the template dimensions as (cols, rows).
func (t Template) Size() (int, int) { return t.Intensity.Cols(), t.Intensity.Rows() }

func (t *Template) close() {
	t.Intensity.Close()
	t.Edges.Close()
}

// Pack is an ordered set of templates loaded from one directory.
type Pack struct {
	Dir       string
	Templates []Template
}

// Names returns template names in pack order.
func (p *Pack) Names() []string {
	names := make([]string, len(p.Templates))
	for i, t := range p.Templates {
		names[i] = t.Name
	}
	return names
}

// Close releases all template Mats.
func (p *Pack) Close() {
	if p == nil {
		return
	}
	for i := range p.Templates {
		p.Templates[i].close()
	}
	p.Templates = nil
}

// LoadPack reads every .png/.jpg/.jpeg file in dir, sorted by file name, and
// precomputes intensity and edge representations. A single undecodable file
// fails the whole load.
func LoadPack(dir string, p EdgeParams) (*Pack, error) {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPackNotFound, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPackNotFound, dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if templateExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPack, dir)
	}
	sort.Strings(files)

	pack := &Pack{Dir: dir, Templates: make([]Template, 0, len(files))}
	for _, name := range files {
		t, err := loadTemplate(filepath.Join(dir, name), p)
		if err != nil {
			pack.Close()
			return nil, err
		}
		pack.Templates = append(pack.Templates, t)
	}
	return pack, nil
}

func loadTemplate(path string, p EdgeParams) (Template, error) {
	color := gocv.IMRead(path, gocv.IMReadColor)
	defer color.Close()
	if color.Empty() {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateDecode, path)
	}
	gray, err := ToIntensity(color)
	if err != nil {
		gray.Close()
		return Template{}, fmt.Errorf("%w: %s: %v", ErrTemplateDecode, path, err)
	}
	base := filepath.Base(path)
	return Template{
		Name:      strings.TrimSuffix(base, filepath.Ext(base)),
		Path:      path,
		Intensity: gray,
		Edges:     ToEdges(gray, p),
	}, nil
}

// LoadPacks loads every pack directory below root, in directory-name order,
// and concatenates their templates. Packs that fail to load are reported in
// the returned slice; the call only fails when nothing was loaded.
func LoadPacks(root string, p EdgeParams) (*Pack, []error, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPackNotFound, root)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)

	all := &Pack{Dir: root}
	var skipped []error
	for _, d := range dirs {
		pack, err := LoadPack(filepath.Join(root, d), p)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		all.Templates = append(all.Templates, pack.Templates...)
	}
	if len(all.Templates) == 0 {
		if len(skipped) > 0 {
			return nil, skipped, fmt.Errorf("%w: no templates under %s: %w", ErrEmptyPack, root, errors.Join(skipped...))
		}
		return nil, nil, fmt.Errorf("%w: no packs under %s", ErrEmptyPack, root)
	}
	return all, skipped, nil
}
