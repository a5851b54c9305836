package utils

import (
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
)

func MustTemplate(data string) *template.Template {
	return template.Must(template.New("page").Funcs(sprig.FuncMap()).Parse(data))
}
