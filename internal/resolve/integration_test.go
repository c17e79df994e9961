package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/crv/py-callscan/internal/discover"
	"github.com/crv/py-callscan/internal/scanner"
)

// These fixtures mirror the shape of the bundled multi-package sample repo
// (alpha/beta/gamma, a linear chain and an import cycle broken by a
// function-local import) rather than copying it file for file.
func writeMultiHopTree(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"pkg/alpha/a_mod.py": "from ..beta.b_mod import beta_mid\n\n\n" +
			"def alpha_entry(x):\n    return beta_mid(x)\n\n\n" +
			"def alpha_cycle(x):\n    from ..beta.b_mod import beta_cycle\n    return beta_cycle(x - 1)\n",
		"pkg/beta/b_mod.py": "from ..gamma.g_mod import gamma_core, gamma_cycle\n\n\n" +
			"def beta_mid(y):\n    return gamma_core(y)\n\n\n" +
			"def beta_cycle(v):\n    return gamma_cycle(v - 2)\n",
		"pkg/gamma/g_mod.py": "def gamma_core(v):\n    return v * 2\n\n\n" +
			"def gamma_cycle(n):\n    if n <= 0:\n        return 0\n    from ..alpha.a_mod import alpha_cycle\n    return alpha_cycle(n - 3)\n", // same depth as alpha/beta, so 2 dots reaches pkg
	}
	for rel, src := range files {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func edgeSet(edges []scanner.Edge) map[string]string {
	m := map[string]string{}
	for _, e := range edges {
		m[e.Caller+"->"+e.Callee] = e.Provenance
	}
	return m
}

func TestEndToEndMultiHopChainAndCycle(t *testing.T) {
	dir := t.TempDir()
	writeMultiHopTree(t, dir)

	files, err := discover.Discover(context.Background(), dir, &discover.Options{})
	if err != nil {
		t.Fatal(err)
	}
	scanner.SortFiles(files)

	run := scanner.ScanAll(dir, files, scanner.Options{Workers: 2, MaxFileSize: 1 << 20})
	if run.ParsedFiles != 3 {
		t.Fatalf("ParsedFiles = %d, want 3", run.ParsedFiles)
	}

	var funcs []scanner.FunctionRecord
	var edges []scanner.Edge
	var unresolved []scanner.UnresolvedCall
	var candidates []scanner.ImportCandidate
	for _, r := range run.Results {
		funcs = append(funcs, r.Functions...)
		edges = append(edges, r.Edges...)
		unresolved = append(unresolved, r.Unresolved...)
		candidates = append(candidates, r.ImportCandidates...)
	}

	edges, unresolved, counters, _, _ := Resolve(funcs, edges, unresolved, candidates, false)
	if len(unresolved) != 0 {
		t.Fatalf("unresolved = %+v, want none (every call resolves within this tree)", unresolved)
	}

	set := edgeSet(edges)

	// Linear chain: both hops cross a package boundary via a from-import,
	// so each call is deferred as a provisional candidate at scan time and
	// only becomes a resolved edge once the global pass runs.
	if prov, ok := set["pkg.alpha.a_mod.alpha_entry->pkg.beta.b_mod.beta_mid"]; !ok || prov != scanner.ProvenanceCrossImport {
		t.Fatalf("alpha_entry->beta_mid = %q, want static-cross-import; edges=%+v", prov, edges)
	}
	if prov, ok := set["pkg.beta.b_mod.beta_mid->pkg.gamma.g_mod.gamma_core"]; !ok || prov != scanner.ProvenanceCrossImport {
		t.Fatalf("beta_mid->gamma_core = %q, want static-cross-import; edges=%+v", prov, edges)
	}

	// The cycle closes: alpha_cycle -> beta_cycle -> gamma_cycle -> alpha_cycle,
	// each hop via a function-local relative import.
	for _, want := range []string{
		"pkg.alpha.a_mod.alpha_cycle->pkg.beta.b_mod.beta_cycle",
		"pkg.beta.b_mod.beta_cycle->pkg.gamma.g_mod.gamma_cycle",
		"pkg.gamma.g_mod.gamma_cycle->pkg.alpha.a_mod.alpha_cycle",
	} {
		if prov, ok := set[want]; !ok || prov != scanner.ProvenanceCrossImport {
			t.Fatalf("edge %s = %q, want static-cross-import; edges=%+v", want, prov, edges)
		}
	}

	if counters.ResolvedExternal == 0 {
		t.Fatalf("counters = %+v, want at least one Pass A resolution", counters)
	}
}
