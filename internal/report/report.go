// Package report assembles the final scan record described by the
// external JSON schema: a fixed envelope plus a set of optional fields
// that only appear when they have something to say.
package report

import (
	"encoding/json"
	"time"

	"github.com/crv/py-callscan/internal/resolve"
	"github.com/crv/py-callscan/internal/scanner"
)

const (
	engine  = "static-pyscan"
	version = 1
)

// CacheStats summarizes how much of a run was served from the cache.
type CacheStats struct {
	ReusedFiles      int `json:"reused_files"`
	ReusedFunctions  int `json:"reused_functions"`
	ReusedEdges      int `json:"reused_edges"`
	ReusedUnresolved int `json:"reused_unresolved"`
	ParsedFiles      int `json:"parsed_files"`
	PrunedFiles      int `json:"pruned_files"`
}

// Skipped tallies the two size/parse skip reasons.
type Skipped struct {
	Size  int `json:"size"`
	Parse int `json:"parse"`
}

// Diag carries the provisional-call diagnostic arrays, capped so a large
// tree cannot balloon the report.
type Diag struct {
	CrossAliasTotal   int                          `json:"cross_alias_total"`
	FromImportTotal   int                          `json:"from_import_total"`
	CrossAliasSamples []scanner.AliasSample        `json:"cross_alias_samples"`
	FromImportSamples []scanner.FromImportSample   `json:"from_import_samples"`
	UnresolvedHist    []resolve.HistEntry          `json:"unresolved_hist"`
}

const sampleCap = 25
const unresolvedHistCap = 20

// Report is the full, pre-serialization record. Build fills it in;
// MarshalJSON renders it with sorted top-level keys and omits the fields
// the schema marks conditional.
type Report struct {
	GeneratedAt string
	Root        string
	Files       int
	Skipped     Skipped
	Functions   []scanner.FunctionRecord
	Edges       []scanner.Edge
	Unresolved  []scanner.UnresolvedCall
	ModulesMeta []scanner.ModuleMeta
	FileHashes  map[string]string
	Workers     int

	HasCache  bool
	CacheUnits map[string]json.RawMessage
	Cache      CacheStats
	HashMode   string

	ResolvedExternal    int
	ImportedMissing     int
	ResolvedCrossModule int
	IgnoredBuiltins     int
	ImportedHist        []resolve.HistEntry

	Diag Diag
}

// MarshalJSON renders the report as a JSON object. Building the envelope
// as a map[string]any lets encoding/json sort the keys for us, matching
// the schema's "keys emitted in sorted order" requirement without hand
// -rolled ordering logic.
func (r *Report) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"engine":           engine,
		"version":          version,
		"generated_at":     r.GeneratedAt,
		"root":             r.Root,
		"files":            r.Files,
		"skipped":          r.Skipped,
		"functions":        nonNil(r.Functions),
		"edges":            nonNil(r.Edges),
		"unresolved_calls": nonNil(r.Unresolved),
		"modules_meta":     nonNil(r.ModulesMeta),
		"file_hashes":      r.FileHashes,
		"workers":          r.Workers,
	}

	m["cache"] = r.Cache
	if r.HasCache {
		m["cache_units"] = r.CacheUnits
		m["hash_mode"] = r.HashMode
	}
	if r.ResolvedExternal > 0 {
		m["resolved_external"] = r.ResolvedExternal
	}
	if r.ImportedMissing > 0 {
		m["imported_missing"] = r.ImportedMissing
		m["imported_candidates"] = r.ResolvedExternal + r.ImportedMissing
	}
	m["imported_hist"] = histPairs(r.ImportedHist)
	if r.ResolvedCrossModule > 0 {
		m["resolved_cross_module"] = r.ResolvedCrossModule
	}
	if r.IgnoredBuiltins > 0 {
		m["ignored_builtins"] = r.IgnoredBuiltins
	}

	diag := map[string]any{
		"cross_alias_total":   r.Diag.CrossAliasTotal,
		"from_import_total":   r.Diag.FromImportTotal,
		"cross_alias_samples": nonNil(r.Diag.CrossAliasSamples),
		"from_import_samples": nonNil(r.Diag.FromImportSamples),
		"unresolved_hist":     histPairs(r.Diag.UnresolvedHist),
	}
	m["diag"] = diag

	return json.Marshal(m)
}

// histPairs renders a histogram as [[component, count], …] pairs, the
// compact form the schema specifies rather than an array of objects.
func histPairs(h []resolve.HistEntry) [][2]any {
	out := make([][2]any, 0, len(h))
	for _, e := range h {
		out = append(out, [2]any{e.Component, e.Count})
	}
	return out
}

// rawCacheUnits wraps each cached payload as json.RawMessage so the
// envelope re-emits the stored JSON verbatim instead of re-encoding it as
// a string.
func rawCacheUnits(units map[string][]byte) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(units))
	for k, v := range units {
		out[k] = json.RawMessage(v)
	}
	return out
}

// nonNil turns a nil slice into an empty, non-null one so the schema's
// array fields never serialize as JSON null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// CapSamples truncates a sample slice to sampleCap entries.
func CapSamples[T any](s []T) []T {
	if len(s) > sampleCap {
		return s[:sampleCap]
	}
	return s
}

// CapUnresolvedHist truncates an unresolved histogram to unresolvedHistCap entries.
func CapUnresolvedHist(h []resolve.HistEntry) []resolve.HistEntry {
	if len(h) > unresolvedHistCap {
		return h[:unresolvedHistCap]
	}
	return h
}

// BuildInput collects everything Build needs from a scan run plus the
// global resolver pass, so cmd/pyscan stays a thin wiring layer.
type BuildInput struct {
	Root    string
	Workers int

	Results []scanner.FileResult // file-sorted scanner.FileResult for every walked file

	Functions  []scanner.FunctionRecord
	Edges      []scanner.Edge // post-resolution, from resolve.Resolve
	Unresolved []scanner.UnresolvedCall

	ParsedFiles int
	ReusedFiles int
	SkippedSize int
	SkippedParse int
	PrunedFiles  int

	Counters       resolve.Counters
	ImportedHist   []resolve.HistEntry
	UnresolvedHist []resolve.HistEntry

	HasCache   bool
	CacheUnits map[string][]byte
	HashMode   string
}

// Build assembles a Report from a completed run. All diagnostic caps are
// applied here, and MarshalJSON applies the conditional-field logic, so
// every caller gets byte-identical shaping.
func Build(in BuildInput) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Root:        in.Root,
		Files:       in.ParsedFiles + in.ReusedFiles,
		Skipped:     Skipped{Size: in.SkippedSize, Parse: in.SkippedParse},
		Functions:   in.Functions,
		Edges:       in.Edges,
		Unresolved:  in.Unresolved,
		FileHashes:  map[string]string{},
		Workers:     in.Workers,

		HasCache: in.HasCache,
		Cache: CacheStats{
			ReusedFiles: in.ReusedFiles,
			ParsedFiles: in.ParsedFiles,
			PrunedFiles: in.PrunedFiles,
		},
		HashMode:   in.HashMode,
		CacheUnits: rawCacheUnits(in.CacheUnits),

		ResolvedExternal:    in.Counters.ResolvedExternal,
		ImportedMissing:     in.Counters.ImportedMissing,
		ResolvedCrossModule: in.Counters.ResolvedCrossModule,
		IgnoredBuiltins:     in.Counters.IgnoredBuiltins,
		ImportedHist:        in.ImportedHist,
	}

	var aliasSamples []scanner.AliasSample
	var fromSamples []scanner.FromImportSample
	var aliasTotal, fromTotal int
	var reusedFunctions, reusedEdges, reusedUnresolved int

	for _, fr := range in.Results {
		if fr.Fingerprint != "" {
			r.FileHashes[fr.RelPath] = fr.Fingerprint
		}
		if fr.Reused {
			reusedFunctions += len(fr.Functions)
			reusedEdges += len(fr.Edges)
			reusedUnresolved += len(fr.Unresolved)
			continue
		}
		if fr.SkipReason != "" {
			continue
		}
		r.ModulesMeta = append(r.ModulesMeta, fr.Meta)
		aliasTotal += len(fr.DiagAlias)
		fromTotal += len(fr.DiagFromImp)
		aliasSamples = append(aliasSamples, fr.DiagAlias...)
		fromSamples = append(fromSamples, fr.DiagFromImp...)
	}

	r.Cache.ReusedFunctions = reusedFunctions
	r.Cache.ReusedEdges = reusedEdges
	r.Cache.ReusedUnresolved = reusedUnresolved

	r.Diag = Diag{
		CrossAliasTotal:   aliasTotal,
		FromImportTotal:   fromTotal,
		CrossAliasSamples: CapSamples(aliasSamples),
		FromImportSamples: CapSamples(fromSamples),
		UnresolvedHist:    CapUnresolvedHist(in.UnresolvedHist),
	}

	return r
}
