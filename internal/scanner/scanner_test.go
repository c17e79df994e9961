package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func scanSource(t *testing.T, root, rel, src string) FileResult {
	t.Helper()
	dir := filepath.Join(root, filepath.Dir(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, rel)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return ScanFile(root, path, 1<<20)
}

func qualnames(funcs []FunctionRecord) map[string]bool {
	m := map[string]bool{}
	for _, f := range funcs {
		m[f.Qualname] = true
	}
	return m
}

func TestScanFileResolvesLocalCall(t *testing.T) {
	dir := t.TempDir()
	res := scanSource(t, dir, "pkg/util.py", "def helper():\n    pass\n\n\ndef run():\n    helper()\n")

	funcs := qualnames(res.Functions)
	if !funcs["pkg.util.helper"] || !funcs["pkg.util.run"] {
		t.Fatalf("Functions = %+v", res.Functions)
	}

	if len(res.Edges) != 1 {
		t.Fatalf("Edges = %+v, want 1", res.Edges)
	}
	e := res.Edges[0]
	if e.Caller != "pkg.util.run" || e.Callee != "pkg.util.helper" || e.Provenance != ProvenancePyscan {
		t.Fatalf("edge = %+v", e)
	}
}

func TestScanFileResolvesSelfMethod(t *testing.T) {
	dir := t.TempDir()
	src := "class Worker:\n    def helper(self):\n        pass\n\n    def run(self):\n        self.helper()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.Edges) != 1 {
		t.Fatalf("Edges = %+v, want 1", res.Edges)
	}
	e := res.Edges[0]
	if e.Caller != "pkg.worker.Worker.run" || e.Callee != "pkg.worker.Worker.helper" {
		t.Fatalf("edge = %+v", e)
	}
}

func TestScanFileSelfMethodNotDefinedStaysUnresolved(t *testing.T) {
	dir := t.TempDir()
	src := "class Worker:\n    def run(self):\n        self.missing()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.Edges) != 0 {
		t.Fatalf("Edges = %+v, want none", res.Edges)
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0].Name != "missing" {
		t.Fatalf("Unresolved = %+v", res.Unresolved)
	}
}

func TestScanFileFromImportProducesCandidate(t *testing.T) {
	dir := t.TempDir()
	src := "from pkg.util import greet\n\n\ndef run():\n    greet()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.ImportCandidates) != 1 {
		t.Fatalf("ImportCandidates = %+v, want 1", res.ImportCandidates)
	}
	c := res.ImportCandidates[0]
	if c.Caller != "pkg.worker.run" || c.Callee != "pkg.util.greet" || c.Provenance != ProvenanceProvisionalFrom {
		t.Fatalf("candidate = %+v", c)
	}
	if len(res.Edges) != 0 {
		t.Fatalf("Edges = %+v, want none (deferred to global resolver)", res.Edges)
	}
}

func TestScanFileAliasModuleCallProducesCandidate(t *testing.T) {
	dir := t.TempDir()
	src := "import pkg.util as u\n\n\ndef run():\n    u.greet()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.ImportCandidates) != 1 {
		t.Fatalf("ImportCandidates = %+v, want 1", res.ImportCandidates)
	}
	c := res.ImportCandidates[0]
	if c.Callee != "pkg.util.greet" || c.Provenance != ProvenanceProvisionalAlias {
		t.Fatalf("candidate = %+v", c)
	}
}

func TestScanFileModuleScopeCallProducesNothing(t *testing.T) {
	dir := t.TempDir()
	res := scanSource(t, dir, "pkg/main.py", "def helper():\n    pass\n\n\nhelper()\n")

	if len(res.Edges) != 0 || len(res.Unresolved) != 0 || len(res.ImportCandidates) != 0 {
		t.Fatalf("module-scope call produced records: edges=%+v unresolved=%+v candidates=%+v",
			res.Edges, res.Unresolved, res.ImportCandidates)
	}
}

func TestScanFileCallOfACallProducesNothing(t *testing.T) {
	dir := t.TempDir()
	src := "def make():\n    pass\n\n\ndef run():\n    make()()\n"
	res := scanSource(t, dir, "pkg/main.py", src)

	// make() itself resolves; the outer call-of-a-call yields nothing extra.
	if len(res.Edges) != 1 {
		t.Fatalf("Edges = %+v, want exactly the inner make() call", res.Edges)
	}
}

func TestScanFileRelativeImportWithNoModuleIsIgnored(t *testing.T) {
	dir := t.TempDir()
	src := "from . import helper\n\n\ndef run():\n    helper()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.ImportCandidates) != 0 {
		t.Fatalf("ImportCandidates = %+v, want none ('from . import' with no module contributes no binding)", res.ImportCandidates)
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0].Name != "helper" {
		t.Fatalf("Unresolved = %+v, want the bare helper() call", res.Unresolved)
	}
}

func TestScanFileDecoratedTopLevelFunctionForwardReference(t *testing.T) {
	dir := t.TempDir()
	src := "def run():\n    helper()\n\n\n@cache\ndef helper():\n    pass\n"
	res := scanSource(t, dir, "pkg/util.py", src)

	if len(res.Edges) != 1 {
		t.Fatalf("Edges = %+v, want 1 (decorated helper registered before Walk sees the call)", res.Edges)
	}
	if res.Edges[0].Callee != "pkg.util.helper" {
		t.Fatalf("Callee = %q, want pkg.util.helper", res.Edges[0].Callee)
	}
}

func TestScanFileDecoratedSelfMethodResolves(t *testing.T) {
	dir := t.TempDir()
	src := "class Worker:\n    @staticmethod\n    def helper():\n        pass\n\n    def run(self):\n        self.helper()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.Edges) != 1 {
		t.Fatalf("Edges = %+v, want 1 (decorated method still registered in the class method table)", res.Edges)
	}
	if res.Edges[0].Callee != "pkg.worker.Worker.helper" {
		t.Fatalf("Callee = %q, want pkg.worker.Worker.helper", res.Edges[0].Callee)
	}
}

func TestScanFileAmbiguousSimpleNameFavorsScopePrefixed(t *testing.T) {
	dir := t.TempDir()
	src := "def helper():\n    pass\n\n\nclass Worker:\n    def helper(self):\n        pass\n\n    def run(self):\n        helper()\n"
	res := scanSource(t, dir, "pkg/worker.py", src)

	if len(res.Edges) != 1 {
		t.Fatalf("Edges = %+v, want 1", res.Edges)
	}
	if res.Edges[0].Callee != "pkg.worker.Worker.helper" {
		t.Fatalf("Callee = %q, want the scope-prefixed candidate", res.Edges[0].Callee)
	}
}
