package scanner

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/crv/py-callscan/internal/fqn"
	"github.com/crv/py-callscan/internal/parser"
)

// frame is one entry on the scope stack: a class or a function.
type frame struct {
	name     string
	qualname string
	isClass  bool
}

// moduleScanner walks one file's AST and accumulates the records the
// reporter eventually serializes. It mirrors a single-pass visitor: the
// name index it reads must already be fully populated by the caller's
// pre-scan before Walk runs.
type moduleScanner struct {
	module string
	source []byte

	scope      []frame  // class/function nesting, outermost first
	callStack  []string // qualnames of functions currently being visited
	classStack []string // qualname of each callStack entry's direct class, "" if none

	nameIndex    map[string][]string // simple name -> qualnames; written only by the pre-scan pass
	registered   map[string]bool    // qualnames already given a FunctionRecord by the pre-scan pass
	classMethods map[string]map[string]bool

	functions        []FunctionRecord
	edges            []Edge
	unresolved       []UnresolvedCall
	importCandidates []ImportCandidate

	importedModules map[string]string
	importedNames   map[string]string

	diagAlias   []AliasSample
	diagFromImp []FromImportSample
}

func newModuleScanner(module string, source []byte, pre preScanResult) *moduleScanner {
	return &moduleScanner{
		module:          module,
		source:          source,
		nameIndex:       pre.nameIndex,
		registered:      pre.registered,
		classMethods:    map[string]map[string]bool{},
		functions:       pre.functions,
		importedModules: map[string]string{},
		importedNames:   map[string]string{},
	}
}

func (s *moduleScanner) text(n *tree_sitter.Node) string {
	return parser.NodeText(n, s.source)
}

// scopeNames returns the plain names (no module prefix) of the active
// scope stack, e.g. ["Worker", "run"].
func (s *moduleScanner) scopeNames() []string {
	names := make([]string, len(s.scope))
	for i, f := range s.scope {
		names[i] = f.name
	}
	return names
}

func (s *moduleScanner) qual(name string) string {
	return fqn.Qualname(s.module, s.scopeNames(), name)
}

// registerFunction appends a FunctionRecord for a definition the pre-scan
// pass did not already claim.
func (s *moduleScanner) registerFunction(n *tree_sitter.Node, name string, kind string) FunctionRecord {
	qual := s.qual(name)
	lineno := int(n.StartPosition().Row) + 1
	endlineno := int(n.EndPosition().Row) + 1

	rec := FunctionRecord{
		ID:        qual,
		Name:      name,
		Qualname:  qual,
		Module:    s.module,
		Kind:      kind,
		Lineno:    lineno,
		EndLineno: endlineno,
	}
	s.functions = append(s.functions, rec)
	return rec
}

// Walk traverses the parsed module body. root must be the "module" node;
// nameIndex must already carry every top-level function/method qualname.
func (s *moduleScanner) Walk(root *tree_sitter.Node) {
	s.visitChildren(root)
}

func (s *moduleScanner) visitChildren(n *tree_sitter.Node) {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child != nil {
			s.visit(child)
		}
	}
}

func (s *moduleScanner) visit(n *tree_sitter.Node) {
	switch n.Kind() {
	case "class_definition":
		s.visitClass(n)
	case "function_definition":
		s.visitFunction(n)
	case "call":
		s.visitCall(n)
		s.visitChildren(n)
	case "import_statement":
		s.visitImport(n)
		s.visitChildren(n)
	case "import_from_statement":
		s.visitImportFrom(n)
		s.visitChildren(n)
	default:
		s.visitChildren(n)
	}
}

func (s *moduleScanner) visitClass(n *tree_sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		s.visitChildren(n)
		return
	}
	name := s.text(nameNode)
	classQual := s.qual(name)

	s.scope = append(s.scope, frame{name: name, qualname: classQual, isClass: true})

	methods := s.classMethods[classQual]
	if methods == nil {
		methods = map[string]bool{}
		s.classMethods[classQual] = methods
	}
	if body := n.ChildByFieldName("body"); body != nil {
		bc := body.ChildCount()
		for i := uint(0); i < bc; i++ {
			stmt := unwrapDecorated(body.Child(i))
			if stmt == nil {
				continue
			}
			if stmt.Kind() == "function_definition" {
				if sn := stmt.ChildByFieldName("name"); sn != nil {
					methods[s.text(sn)] = true
				}
			}
		}
	}

	s.visitChildren(n)

	s.scope = s.scope[:len(s.scope)-1]
}

func (s *moduleScanner) visitFunction(n *tree_sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		s.visitChildren(n)
		return
	}
	name := s.text(nameNode)

	parentIsClass := len(s.scope) > 0 && s.scope[len(s.scope)-1].isClass
	kind := "function"
	directClassQual := ""
	if parentIsClass {
		kind = "method"
		directClassQual = s.scope[len(s.scope)-1].qualname
	}

	qual := s.qual(name)
	if !s.registered[qual] {
		s.registerFunction(n, name, kind)
	}

	s.scope = append(s.scope, frame{name: name, qualname: qual, isClass: false})
	s.callStack = append(s.callStack, qual)
	s.classStack = append(s.classStack, directClassQual)

	s.visitChildren(n)

	s.classStack = s.classStack[:len(s.classStack)-1]
	s.callStack = s.callStack[:len(s.callStack)-1]
	s.scope = s.scope[:len(s.scope)-1]
}

func (s *moduleScanner) visitCall(n *tree_sitter.Node) {
	if len(s.callStack) == 0 {
		return
	}
	caller := s.callStack[len(s.callStack)-1]

	funcNode := n.ChildByFieldName("function")
	if funcNode == nil {
		return
	}

	switch cls := s.classifyCall(funcNode, caller); cls.kind {
	case callResolved:
		s.edges = append(s.edges, Edge{Caller: caller, Callee: cls.target, Kind: "call", Provenance: ProvenancePyscan})
	case callImportCandidate:
		s.importCandidates = append(s.importCandidates, ImportCandidate{Caller: caller, Callee: cls.target, Provenance: cls.provenance})
	case callUnresolved:
		s.unresolved = append(s.unresolved, UnresolvedCall{Caller: caller, Name: cls.target})
	}
}

type callKind int

const (
	callNone callKind = iota
	callResolved
	callImportCandidate
	callUnresolved
)

type callClassification struct {
	kind       callKind
	target     string
	provenance string
}

// classifyCall classifies a call's callee expression per the call-site
// rules: a simple name resolves against the local name index, then the
// from-import map; an attribute resolves self.method() against the
// lexically enclosing class, then alias.attr() against the module import
// map. Anything else (call-of-a-call, subscript, lambda literal, …) is
// callNone and produces neither an edge nor an unresolved entry.
func (s *moduleScanner) classifyCall(funcNode *tree_sitter.Node, caller string) callClassification {
	switch funcNode.Kind() {
	case "identifier":
		id := s.text(funcNode)
		if matches := s.nameIndex[id]; len(matches) > 0 {
			if len(matches) > 1 && len(s.scope) > 0 {
				prefix := s.module + "."
				if len(s.scope) > 1 {
					prefix = s.module + "." + strings.Join(s.scopeNames()[:len(s.scope)-1], ".")
				}
				for _, m := range matches {
					if strings.HasPrefix(m, prefix) {
						return callClassification{kind: callResolved, target: m}
					}
				}
			}
			return callClassification{kind: callResolved, target: matches[0]}
		}
		if full, ok := s.importedNames[id]; ok {
			s.diagFromImp = append(s.diagFromImp, FromImportSample{Caller: caller, Symbol: id, Target: full})
			return callClassification{kind: callImportCandidate, target: full, provenance: ProvenanceProvisionalFrom}
		}
		return callClassification{kind: callUnresolved, target: id}

	case "attribute":
		objNode := funcNode.ChildByFieldName("object")
		attrNode := funcNode.ChildByFieldName("attribute")
		if attrNode == nil {
			return callClassification{}
		}
		attr := s.text(attrNode)

		if objNode != nil && objNode.Kind() == "identifier" && s.text(objNode) == "self" {
			if len(s.classStack) > 0 {
				classQual := s.classStack[len(s.classStack)-1]
				if classQual != "" {
					if methods := s.classMethods[classQual]; methods != nil && methods[attr] {
						return callClassification{kind: callResolved, target: classQual + "." + attr}
					}
				}
			}
		}

		if objNode != nil && objNode.Kind() == "identifier" {
			alias := s.text(objNode)
			if modFull, ok := s.importedModules[alias]; ok {
				full := modFull + "." + attr
				s.diagAlias = append(s.diagAlias, AliasSample{Caller: caller, Alias: alias, Module: modFull, Attr: attr, Target: full})
				return callClassification{kind: callImportCandidate, target: full, provenance: ProvenanceProvisionalAlias}
			}
		}
		return callClassification{kind: callUnresolved, target: attr}

	default:
		return callClassification{}
	}
}

func (s *moduleScanner) visitImport(n *tree_sitter.Node) {
	for _, nameNode := range fieldChildren(n, "name") {
		switch nameNode.Kind() {
		case "aliased_import":
			dotted := nameNode.ChildByFieldName("name")
			alias := nameNode.ChildByFieldName("alias")
			if dotted != nil && alias != nil {
				s.importedModules[s.text(alias)] = s.text(dotted)
			}
		case "dotted_name", "identifier":
			full := s.text(nameNode)
			root := full
			if idx := strings.IndexByte(full, '.'); idx >= 0 {
				root = full[:idx]
			}
			s.importedModules[root] = root
		}
	}
}

func (s *moduleScanner) visitImportFrom(n *tree_sitter.Node) {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	var modulePart string
	level := 0
	switch moduleNode.Kind() {
	case "dotted_name":
		modulePart = s.text(moduleNode)
	case "relative_import":
		count := moduleNode.ChildCount()
		for i := uint(0); i < count; i++ {
			c := moduleNode.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "import_prefix":
				level = len(s.text(c))
			case "dotted_name":
				modulePart = s.text(c)
			}
		}
	default:
		return
	}

	if level > 0 && modulePart == "" {
		// `from . import x` / `from .. import x`: no module to normalize
		// against, so the statement contributes no import binding.
		return
	}

	mod := s.resolveModulePath(level, modulePart)
	if mod == "" {
		return
	}

	for _, nameNode := range fieldChildren(n, "name") {
		switch nameNode.Kind() {
		case "aliased_import":
			orig := nameNode.ChildByFieldName("name")
			alias := nameNode.ChildByFieldName("alias")
			if orig != nil && alias != nil {
				s.importedNames[s.text(alias)] = mod + "." + s.text(orig)
			}
		case "dotted_name", "identifier":
			origName := s.text(nameNode)
			s.importedNames[origName] = mod + "." + origName
		}
	}
}

// resolveModulePath normalizes a from-import's module reference to an
// absolute dotted path. level==0 is already absolute. level>0 walks the
// importing module's own package path upward by (level-1) additional
// components beyond the package containing this file, then appends
// modulePart (if present).
func (s *moduleScanner) resolveModulePath(level int, modulePart string) string {
	if level == 0 {
		return modulePart
	}
	segs := strings.Split(s.module, ".")
	if len(segs) > 0 {
		segs = segs[:len(segs)-1] // drop the file's own module segment
	}
	up := level - 1
	if up > len(segs) {
		up = len(segs)
	}
	pkg := segs[:len(segs)-up]
	base := strings.Join(pkg, ".")
	if modulePart == "" {
		return base
	}
	if base == "" {
		return modulePart
	}
	return base + "." + modulePart
}

// fieldChildren returns every child of n whose field name equals field,
// in document order — a repeated-field equivalent of ChildByFieldName.
func fieldChildren(n *tree_sitter.Node, field string) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if n.FieldNameForChild(uint32(i)) == field {
			if c := n.Child(i); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}
