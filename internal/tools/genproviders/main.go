// Command genproviders writes providers/all/all.go: one blank import per
// provider package found under providers/<domain>/<name>.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

const defaultModule = "github.com/pulseboard/pulse"

var fileTemplate = template.Must(template.New("all").Parse(`// Code generated by genproviders. DO NOT EDIT.

package all

import (
{{- range .}}
	_ "{{.}}"
{{- end}}
)
`))

func main() {
	root := flag.String("root", "providers", "providers directory")
	out := flag.String("out", "", "output file (stdout when empty)")
	module := flag.String("module", defaultModule, "module import path")
	flag.Parse()

	if err := run(*root, *out, *module); err != nil {
		fmt.Fprintln(os.Stderr, "genproviders:", err)
		os.Exit(1)
	}
}

func run(root, out, module string) error {
	pkgs, err := Collect(root)
	if err != nil {
		return err
	}
	imports := make([]string, len(pkgs))
	for i, p := range pkgs {
		imports[i] = path.Join(module, "providers", p)
	}
	src, err := Render(imports)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(src)
		return err
	}
	return os.WriteFile(out, src, 0o644)
}

// Collect returns "<domain>/<name>" for every provider package under root,
// sorted. A provider package is a directory two levels down holding at
// least one non-test Go file. Directories starting with "_" or "." and
// testdata are ignored, as is the top-level all package.
func Collect(root string) ([]string, error) {
	domains, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var pkgs []string
	for _, d := range domains {
		if !d.IsDir() || skipDir(d.Name()) || d.Name() == "all" {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, d.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() || skipDir(e.Name()) {
				continue
			}
			ok, err := hasGoSource(filepath.Join(root, d.Name(), e.Name()))
			if err != nil {
				return nil, err
			}
			if ok {
				pkgs = append(pkgs, d.Name()+"/"+e.Name())
			}
		}
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

// Render produces the gofmt-ed source of all.go.
func Render(imports []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, imports); err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata"
}

func hasGoSource(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			return true, nil
		}
	}
	return false, nil
}
