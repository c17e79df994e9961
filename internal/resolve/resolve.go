// Package resolve implements the global resolution passes that run once
// the scan phase has joined: Pass A settles from-import candidates
// against the whole-tree function set, Pass B makes a best effort against
// aliased-module candidates and the remaining unresolved calls using
// top-level module disambiguation.
package resolve

import (
	"sort"
	"strings"

	"github.com/crv/py-callscan/internal/scanner"
)

// HistEntry is one row of a leading-component histogram.
type HistEntry struct {
	Component string `json:"component"`
	Count     int    `json:"count"`
}

// Counters tallies the outcomes of both global passes, matching the
// report's top-level fields. The PYSCAN_STATS line prints
// ResolvedCrossModule as resolved_cross and ResolvedExternal as
// imported_resolved.
type Counters struct {
	ResolvedExternal    int
	ImportedMissing     int
	ResolvedCrossModule int
	IgnoredBuiltins     int
}

// Resolve runs Pass A over from-import candidates, then Pass B over
// alias-module candidates and the genuinely unresolved calls. funcs is
// the whole-tree FunctionRecord set; edges/unresolved/candidates are the
// concatenation, in file-sorted order, of every scanner.FileResult.
func Resolve(funcs []scanner.FunctionRecord, edges []scanner.Edge, unresolved []scanner.UnresolvedCall, candidates []scanner.ImportCandidate, ignoreBuiltins bool) ([]scanner.Edge, []scanner.UnresolvedCall, Counters, []HistEntry, []HistEntry) {
	funcSet := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		funcSet[f.Qualname] = true
	}
	topModules := topLevelModules(funcs)

	out := make([]scanner.Edge, len(edges))
	copy(out, edges)

	var counters Counters
	importedMisses := map[string]int{}

	// Pass A settles from-import symbols against the function set. Alias
	// candidates are held back: a dotted alias.attr target is resolved
	// like any other dotted name, in Pass B.
	var aliasCands []scanner.ImportCandidate
	for _, cand := range candidates {
		if cand.Provenance == scanner.ProvenanceProvisionalAlias {
			aliasCands = append(aliasCands, cand)
			continue
		}
		if funcSet[cand.Callee] {
			out = append(out, scanner.Edge{
				Caller:     cand.Caller,
				Callee:     cand.Callee,
				Kind:       "call",
				Provenance: scanner.ProvenanceCrossImport,
			})
			counters.ResolvedExternal++
			continue
		}
		out = append(out, scanner.Edge{
			Caller:     cand.Caller,
			Callee:     cand.Callee,
			Kind:       "call",
			Provenance: cand.Provenance,
		})
		counters.ImportedMissing++
		importedMisses[leadingComponent(cand.Callee)]++
	}

	// Pass B: alias candidates first. A miss keeps the provisional edge
	// rather than joining the unresolved list — the call site already has
	// its one edge.
	for _, cand := range aliasCands {
		if target := resolveName(funcSet, topModules, cand.Callee); target != "" {
			out = append(out, scanner.Edge{
				Caller:     cand.Caller,
				Callee:     target,
				Kind:       "call",
				Provenance: scanner.ProvenanceCrossModule,
			})
			counters.ResolvedCrossModule++
			continue
		}
		out = append(out, scanner.Edge{
			Caller:     cand.Caller,
			Callee:     cand.Callee,
			Kind:       "call",
			Provenance: cand.Provenance,
		})
	}

	remaining := make([]scanner.UnresolvedCall, 0, len(unresolved))
	unresolvedMisses := map[string]int{}

	for _, u := range unresolved {
		clean := strings.TrimLeft(u.Name, ".")

		if ignoreBuiltins && IsBuiltin(clean) {
			counters.IgnoredBuiltins++
			continue
		}

		// The histogram counts every entry entering resolution, not just
		// the ones that survive it.
		unresolvedMisses[leadingComponent(clean)]++

		if target := resolveName(funcSet, topModules, clean); target != "" {
			out = append(out, scanner.Edge{
				Caller:     u.Caller,
				Callee:     target,
				Kind:       "call",
				Provenance: scanner.ProvenanceCrossModule,
			})
			counters.ResolvedCrossModule++
			continue
		}

		remaining = append(remaining, u)
	}

	return out, remaining, counters, topHist(importedMisses, 15), topHist(unresolvedMisses, 20)
}

// resolveName resolves a dot-stripped name against the function set: the
// name itself, then each sorted top-level module prefix, each tried first
// as an exact qualname and then as a unique dotted suffix. Multiple
// suffix matches are ambiguous and resolve to nothing.
func resolveName(funcSet map[string]bool, topModules []string, clean string) string {
	cands := make([]string, 0, len(topModules)+1)
	cands = append(cands, clean)
	for _, tm := range topModules {
		cands = append(cands, tm+"."+clean)
	}

	for _, c := range cands {
		if funcSet[c] {
			return c
		}
		var matches []string
		for fq := range funcSet {
			if strings.HasSuffix(fq, "."+c) {
				matches = append(matches, fq)
			}
		}
		if len(matches) == 1 {
			return matches[0]
		}
	}
	return ""
}

// leadingComponent returns the first dotted component of a dotted name, or
// the whole name if it has none.
func leadingComponent(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// topLevelModules returns the sorted set of leading module components
// present in the function set, used as Pass B's candidate prefixes. A
// sorted container is required so candidate generation order — and thus
// which ambiguous match wins — is reproducible across runs.
func topLevelModules(funcs []scanner.FunctionRecord) []string {
	set := map[string]bool{}
	for _, f := range funcs {
		if f.Module == "" {
			continue
		}
		set[leadingComponent(f.Module)] = true
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// topHist renders a counts map as a histogram sorted by count descending
// then component ascending, capped at n entries.
func topHist(counts map[string]int, n int) []HistEntry {
	entries := make([]HistEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, HistEntry{Component: k, Count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Component < entries[j].Component
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
