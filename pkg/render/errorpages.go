package render

import (
	"bytes"
	_ "embed"
	"html/template"
)

// Built-in substitute pages, served when no configured error view can.

//go:embed pages/notfound.html
var builtinNotFound string

//go:embed pages/diagnostic.html
var builtinDiagnostic string

var diagnosticTmpl = template.Must(template.New("diagnostic").Parse(builtinDiagnostic))

// renderDiagnostic fills the verbose failure page shown outside
// production. The cause is escaped, so engine errors can quote
// template source safely.
func renderDiagnostic(view string, cause error) []byte {
	var buf bytes.Buffer
	err := diagnosticTmpl.Execute(&buf, struct {
		View  string
		Error string
	}{View: view, Error: cause.Error()})
	if err != nil {
		return []byte(builtinNotFound)
	}
	return buf.Bytes()
}
