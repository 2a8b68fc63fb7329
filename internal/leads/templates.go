package leads

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	textTemplates = template.Must(template.ParseFS(templateFS, "templates/*.txt.tmpl"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
)

func renderText(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderHTML escapes every field, so submitter input cannot inject markup.
func renderHTML(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
