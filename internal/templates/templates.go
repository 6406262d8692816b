// Package templates embeds the HTML pages and resume layouts and describes which layouts are free.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed html/*.html
var files embed.FS

// Layout is one selectable resume design.
type Layout struct {
	Name    string
	Label   string
	Premium bool
}

// DefaultLayout is used when a form omits the template field.
const DefaultLayout = "classic"

var catalogue = []Layout{
	{Name: "classic", Label: "Classic"},
	{Name: "modern", Label: "Modern"},
	{Name: "minimal", Label: "Minimal"},
	{Name: "executive", Label: "Executive", Premium: true},
	{Name: "creative", Label: "Creative", Premium: true},
}

// Catalogue lists every layout in display order.
func Catalogue() []Layout {
	out := make([]Layout, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup finds a layout by name.
func Lookup(name string) (Layout, bool) {
	for _, l := range catalogue {
		if l.Name == name {
			return l, true
		}
	}
	return Layout{}, false
}

// IsFree reports whether name is a known layout outside the premium set.
func IsFree(name string) bool {
	l, ok := Lookup(name)
	return ok && !l.Premium
}

// ResumePage is the template name rendering a resume in the given layout.
func ResumePage(layout string) string {
	return "resume_" + layout + ".html"
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	// trusted marks sanitizer output so its allow-listed inline tags render.
	"trusted": func(s string) template.HTML { return template.HTML(s) },
	"lower":   strings.ToLower,
}

// Load parses every embedded page. Template names are the file names, e.g. "index.html".
func Load() (*template.Template, error) {
	t, err := template.New("").Funcs(funcs).ParseFS(files, "html/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *template.Template {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

// Document is the data handed to a resume layout.
type Document struct {
	Resume any
	// Picture is the image source; data URIs are allowed so exports are self-contained.
	Picture     template.URL
	Interactive bool
	PDFHref     string
	// Flashes is only shown on the interactive page.
	Flashes any
}

// RenderResume writes a standalone resume document for the given layout.
func RenderResume(t *template.Template, w io.Writer, layout string, data any) error {
	if _, ok := Lookup(layout); !ok {
		return fmt.Errorf("unknown layout %q", layout)
	}
	if err := t.ExecuteTemplate(w, ResumePage(layout), data); err != nil {
		return fmt.Errorf("render %s: %w", layout, err)
	}
	return nil
}
