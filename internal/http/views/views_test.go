package views

import (
	"bytes"
	"strings"
	"testing"
)

func TestTemplates_AllPagesRender(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}

	pages := []string{"login.html", "signup.html", "details.html", "reset.html", "reset-password.html", "dashboard.html", "404.html", "error.html"}
	for _, name := range pages {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, Page{Title: name, Form: map[string]string{}}); err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
		if !strings.Contains(buf.String(), "</html>") {
			t.Fatalf("%s did not render the layout", name)
		}
	}
}

func TestTemplates_EscapeUserInput(t *testing.T) {
	tmpl := MustTemplates()

	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "dashboard.html", Page{
		SignedIn: true,
		UserName: "<script>x</script>",
		Searched: true,
		SearchResults: []Contact{
			{Name: "bob", Email: "bob@x.io"},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "<script>x</script>") {
		t.Fatalf("user input was not escaped")
	}
	if !strings.Contains(out, "bob@x.io") || !strings.Contains(out, "<td>B</td>") {
		t.Fatalf("search results missing: %s", out)
	}
}

func TestTemplates_NilFormRendersEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := MustTemplates().ExecuteTemplate(&buf, "signup.html", Page{}); err != nil {
		t.Fatalf("render with nil form: %v", err)
	}
}
