package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS

// Templates holds one parsed set per page so each page's content block
// stays separate.
type Templates struct {
	pages map[string]*template.Template
}

func (t *Templates) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	page, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return page.Execute(w, data)
}

// LoadTemplates parses every page under templates/pages together with the
// base layout. Pages are looked up by file name.
func LoadTemplates() (*Templates, error) {
	baseContent, err := fs.ReadFile(TemplatesFS, "templates/layouts/base.html")
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(TemplatesFS, "templates/pages")
	if err != nil {
		return nil, err
	}

	t := &Templates{pages: make(map[string]*template.Template, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pageContent, err := fs.ReadFile(TemplatesFS, "templates/pages/"+entry.Name())
		if err != nil {
			return nil, err
		}

		// Base first, then the page, which overrides the content block
		page, err := template.New(entry.Name()).Parse(string(baseContent))
		if err != nil {
			return nil, err
		}
		if _, err := page.Parse(string(pageContent)); err != nil {
			return nil, err
		}
		t.pages[entry.Name()] = page
	}

	return t, nil
}

// GetStaticFS returns the static file system for serving static files
func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
