package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"sigs.k8s.io/yaml"
)

// Engine renders component manifests.
type Engine struct {
	FuncMap template.FuncMap
}

// NewEngine creates an engine with the sprig function map. Functions that read the
// environment of the harness process are removed, manifests only see their values.
func NewEngine() *Engine {
	f := sprig.TxtFuncMap()

	for _, fun := range []string{"env", "expandenv"} {
		delete(f, fun)
	}
	f["toYaml"] = toYAML

	return &Engine{FuncMap: f}
}

func (e *Engine) Template(name string) *template.Template {
	t := template.New("gotpl")
	t.Option("missingkey=error")

	return t.New(name).Funcs(e.FuncMap)
}

// Render executes tpl with vals in strict mode, a missing key is an error.
func (e *Engine) Render(tplName string, tpl string, vals map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	t := e.Template(tplName)

	if _, err := t.Parse(tpl); err != nil {
		return "", fmt.Errorf("error parsing template %s: %s", tplName, err)
	}

	if err := t.ExecuteTemplate(&buf, tplName, vals); err != nil {
		return "", fmt.Errorf("error rendering template %s: %s", tplName, err)
	}

	return buf.String(), nil
}

// toYAML marshals v for use inside a template. Errors render as an empty string.
func toYAML(v interface{}) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
