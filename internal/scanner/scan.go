package scanner

import (
	"log/slog"
	"os"
	"path/filepath"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/crv/py-callscan/internal/fqn"
	"github.com/crv/py-callscan/internal/lang"
	"github.com/crv/py-callscan/internal/parser"
)

// ScanFile parses path and runs the two-pass scan described by the
// package doc. It never surfaces an error for malformed source — parse
// failures surface as SkipReason "parse" so the caller's run continues;
// nothing a single file does can abort the overall scan.
func ScanFile(root, path string, maxFileSize int64) FileResult {
	rel := relPath(root, path)

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("scan.stat.err", "path", rel, "err", err)
		return FileResult{RelPath: rel, SkipReason: "parse"}
	}
	if info.Size() > maxFileSize {
		slog.Debug("scan.size.skip", "path", rel, "size", info.Size(), "limit", maxFileSize)
		return FileResult{RelPath: rel, SkipReason: "size"}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("scan.read.err", "path", rel, "err", err)
		return FileResult{RelPath: rel, SkipReason: "parse"}
	}

	tree, err := parser.Parse(lang.Python, source)
	if err != nil || tree == nil {
		slog.Debug("scan.parse.err", "path", rel, "err", err)
		return FileResult{RelPath: rel, SkipReason: "parse"}
	}
	defer tree.Close()

	root_ := tree.RootNode()
	if root_ == nil {
		return FileResult{RelPath: rel, SkipReason: "parse"}
	}

	module := fqn.ModuleName(root, path)
	pre := preRegister(module, root_, source)

	s := newModuleScanner(module, source, pre)
	s.Walk(root_)

	return FileResult{
		RelPath:          rel,
		Module:           module,
		Functions:        s.functions,
		Edges:            s.edges,
		Unresolved:       s.unresolved,
		ImportCandidates: s.importCandidates,
		Meta: ModuleMeta{
			Module:      module,
			Imports:     s.importedModules,
			FromImports: s.importedNames,
		},
		DiagAlias:   s.diagAlias,
		DiagFromImp: s.diagFromImp,
	}
}

// preScanResult is the output of the first pass: every lexically
// top-level function and every direct method of a top-level class,
// registered exactly once, before the second pass (Walk) begins.
type preScanResult struct {
	nameIndex  map[string][]string
	functions  []FunctionRecord
	registered map[string]bool
}

// preRegister performs the first pass. Top-level functions and top-level
// classes' direct methods get a FunctionRecord here; the second pass never
// re-registers a qualname this pass already claimed.
func preRegister(module string, root *tree_sitter.Node, source []byte) preScanResult {
	res := preScanResult{
		nameIndex:  map[string][]string{},
		registered: map[string]bool{},
	}

	add := func(n *tree_sitter.Node, qual, name, kind string) {
		rec := FunctionRecord{
			ID:        qual,
			Name:      name,
			Qualname:  qual,
			Module:    module,
			Kind:      kind,
			Lineno:    int(n.StartPosition().Row) + 1,
			EndLineno: int(n.EndPosition().Row) + 1,
		}
		res.functions = append(res.functions, rec)
		res.nameIndex[name] = append(res.nameIndex[name], qual)
		res.registered[qual] = true
	}

	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		stmt := unwrapDecorated(root.Child(i))
		if stmt == nil {
			continue
		}
		switch stmt.Kind() {
		case "function_definition":
			if nameNode := stmt.ChildByFieldName("name"); nameNode != nil {
				name := parser.NodeText(nameNode, source)
				add(stmt, fqn.Qualname(module, nil, name), name, "function")
			}
		case "class_definition":
			classNameNode := stmt.ChildByFieldName("name")
			body := stmt.ChildByFieldName("body")
			if classNameNode == nil || body == nil {
				continue
			}
			className := parser.NodeText(classNameNode, source)
			bc := body.ChildCount()
			for j := uint(0); j < bc; j++ {
				sub := unwrapDecorated(body.Child(j))
				if sub == nil || sub.Kind() != "function_definition" {
					continue
				}
				subNameNode := sub.ChildByFieldName("name")
				if subNameNode == nil {
					continue
				}
				subName := parser.NodeText(subNameNode, source)
				add(sub, fqn.Qualname(module, []string{className}, subName), subName, "method")
			}
		}
	}

	return res
}

// unwrapDecorated follows a decorated_definition down to the function or
// class definition it wraps, so a direct-children scan sees through
// decorators (@staticmethod, @app.route, …) the same way a full recursive
// walk already does.
func unwrapDecorated(n *tree_sitter.Node) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	if n.Kind() == "decorated_definition" {
		if def := n.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return n
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
