// Package testutil holds test helpers that keep package boundaries honest: the
// domain model stays free of host code, and publishing talks to storage only
// through the blob facade.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// ImportPredicate reports whether an import path is forbidden.
type ImportPredicate func(importPath string) bool

// AssertNoDirectImports parses every non-test .go file in dir and fails if any
// import matches forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden ImportPredicate, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfViolations(t, reason, viols)
}

// InternalImportForbidden matches any path under an internal/ tree.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasSuffix(path, "/internal")
}

// InfraImportForbidden matches the concrete storage adapters.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/")
}

// CLIImportForbidden matches command-line framework packages.
func CLIImportForbidden(path string) bool {
	return strings.HasPrefix(path, "github.com/spf13/")
}

// ModuleImportForbidden matches any package of the given module.
func ModuleImportForbidden(module string) ImportPredicate {
	return func(path string) bool {
		return path == module || strings.HasPrefix(path, module+"/")
	}
}

// AnyOf combines predicates.
func AnyOf(preds ...ImportPredicate) ImportPredicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

func directImportViolations(dir string, forbidden ImportPredicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
