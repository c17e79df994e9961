// Package fqn derives module names from filesystem paths and joins them with
// enclosing scope to build the qualified names every FunctionRecord and Edge
// is keyed by.
package fqn

import (
	"path/filepath"
	"strings"
)

// ModuleName computes the canonical module name for a file given the scan
// root. Path separators become dots, a trailing "__init__" segment is
// stripped (the package directory becomes the module), the extension is
// removed, and empty components are discarded.
//
// Example: root=/r, file=/r/pkg/sub/__init__.py -> "pkg.sub"
// Example: root=/r, file=/r/pkg/x.py            -> "pkg.x"
func ModuleName(root, filePath string) string {
	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		rel = filePath
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	parts := strings.Split(rel, "/")
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}

	var kept []string
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

// Qualname joins a module name with zero or more enclosing scope segments
// (class/function names, outermost first) and a symbol's own name.
func Qualname(module string, scope []string, name string) string {
	all := make([]string, 0, 2+len(scope))
	if module != "" {
		all = append(all, module)
	}
	all = append(all, scope...)
	if name != "" {
		all = append(all, name)
	}
	return strings.Join(all, ".")
}
