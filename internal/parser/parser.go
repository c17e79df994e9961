// Package parser wraps the tree-sitter Python grammar behind a small
// interface the scanner depends on. The parser itself is treated as a black
// box: callers only ever see node kinds, byte spans, and field accessors.
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/crv/py-callscan/internal/lang"
)

var (
	languageOnce sync.Once
	pyLanguage   *tree_sitter.Language
	parserPool   *sync.Pool
)

func initLanguage() {
	languageOnce.Do(func() {
		pyLanguage = tree_sitter.NewLanguage(tree_sitter_python.Language())
		parserPool = &sync.Pool{
			New: func() any {
				p := tree_sitter.NewParser()
				if err := p.SetLanguage(pyLanguage); err != nil {
					panic(fmt.Sprintf("set language: %v", err))
				}
				return p
			},
		}
	})
}

// GetLanguage returns the tree-sitter Language for l.
func GetLanguage(l lang.Language) (*tree_sitter.Language, error) {
	if l != lang.Python {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	initLanguage()
	return pyLanguage, nil
}

// Parse parses source code into a tree-sitter AST Tree.
// The caller must call tree.Close() when done.
// Parsers are pooled via sync.Pool to avoid per-file allocation.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	if l != lang.Python {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	initLanguage()

	p, _ := parserPool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("failed to get parser for language %s", l)
	}
	tree := p.Parse(source, nil)
	parserPool.Put(p)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", l)
	}

	return tree, nil
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
