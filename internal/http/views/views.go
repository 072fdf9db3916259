// Package views holds the server-rendered HTML pages.
package views

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"initial": func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return "?"
		}
		return strings.ToUpper(string([]rune(s)[:1]))
	},
}

// Templates parses every page and partial. Page templates are addressed by
// file name, e.g. "login.html".
func Templates() (*template.Template, error) {
	return template.New("memberhub").Funcs(funcs).ParseFS(files, "templates/*.html")
}

// MustTemplates is Templates for program start-up.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

// Page is the data every page template receives.
type Page struct {
	Title     string
	RequestID string

	Success []string
	Errors  []string

	// Signed-in user, if any.
	UserName  string
	UserEmail string
	SignedIn  bool

	// Submitted non-secret form values, re-rendered after a rejection.
	Form map[string]string

	Token string

	Searched      bool
	SearchQuery   string
	SearchResults []Contact
}

type Contact struct {
	Name               string
	Email              string
	RegistrationNumber string
	Address            string
	PhoneNumber        string
}
