package scanner

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/crv/py-callscan/internal/cache"
	"github.com/crv/py-callscan/internal/discover"
)

// cacheUnit is the JSON shape persisted per relpath. It carries the
// fingerprint plus exactly the fields a reused FileResult needs to stand
// in for a freshly parsed one. Meta and the diagnostic samples are not
// cached — they come back empty on a reused file, and the reporter only
// consults them for freshly parsed files.
type cacheUnit struct {
	Hash             string            `json:"hash"`
	Functions        []FunctionRecord  `json:"functions"`
	Edges            []Edge            `json:"edges"`
	Unresolved       []UnresolvedCall  `json:"unresolved_calls"`
	ImportCandidates []ImportCandidate `json:"import_candidates"`
}

// Options configures a whole-tree scan run.
type Options struct {
	Workers     int
	MaxFileSize int64
	Cache       *cache.Cache
	HashMode    cache.HashMode
	// EdgeCap, when nonzero, stops dispatching new files once the running
	// edge total (across already-completed files) reaches it. Files
	// already in flight are allowed to finish; no file is abandoned
	// mid-walk.
	EdgeCap int
}

// RunResult aggregates every file's outcome from a single ScanAll pass, in
// file-sorted order — the order the reporter and global resolver require.
type RunResult struct {
	Results      []FileResult
	ParsedFiles  int
	ReusedFiles  int
	SkippedSize  int
	SkippedParse int
	PrunedFiles  int
}

// ScanAll walks files (already sorted by the caller) with a bounded pool
// of workers, consulting the cache for each file before parsing it fresh.
// Each file's parse + two-pass walk is independent, so dispatch order does
// not affect the result; an indexed result slice preserves file order in
// the output regardless of completion order.
func ScanAll(root string, files []discover.FileInfo, opts Options) RunResult {
	n := len(files)
	results := make([]FileResult, n)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	var edgeTotal int64
	var stopped int32

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, f := range files {
		if opts.EdgeCap > 0 && atomic.LoadInt32(&stopped) != 0 {
			break
		}
		g.Go(func() error {
			if opts.EdgeCap > 0 && atomic.LoadInt64(&edgeTotal) >= int64(opts.EdgeCap) {
				atomic.StoreInt32(&stopped, 1)
				return nil
			}

			res := scanOneFile(root, f, opts)
			results[i] = res
			atomic.AddInt64(&edgeTotal, int64(len(res.Edges)))
			if opts.EdgeCap > 0 && atomic.LoadInt64(&edgeTotal) >= int64(opts.EdgeCap) {
				atomic.StoreInt32(&stopped, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := RunResult{}
	live := make(map[string]bool, n)
	for i, f := range files {
		live[f.RelPath] = true
		r := results[i]
		if r.RelPath == "" {
			// Dispatch was cut short by the edge cap; leave a placeholder
			// so downstream indexing stays aligned with files.
			r = FileResult{RelPath: f.RelPath, SkipReason: "cap"}
			results[i] = r
		}
		switch {
		case r.Reused:
			out.ReusedFiles++
		case r.SkipReason == "size":
			out.SkippedSize++
		case r.SkipReason == "parse":
			out.SkippedParse++
		case r.SkipReason == "cap":
			// Not a size or parse failure; the file simply was not reached.
		default:
			out.ParsedFiles++
		}
	}
	out.Results = results

	if opts.Cache != nil {
		pruned, _ := opts.Cache.Prune(live)
		out.PrunedFiles = pruned
	}

	return out
}

func scanOneFile(root string, f discover.FileInfo, opts Options) FileResult {
	// The fingerprint feeds the report's file_hashes for every scanned or
	// reused file, not just cached runs; skipped files get none.
	fp := cache.Fingerprint(f.Path, opts.HashMode)
	if opts.Cache != nil {
		if payload, ok := opts.Cache.Lookup(f.RelPath, fp, opts.HashMode); ok {
			var u cacheUnit
			if err := json.Unmarshal(payload, &u); err == nil {
				slog.Debug("scan.cache.reuse", "path", f.RelPath, "fingerprint", fp)
				return FileResult{
					RelPath:          f.RelPath,
					Functions:        u.Functions,
					Edges:            u.Edges,
					Unresolved:       u.Unresolved,
					ImportCandidates: u.ImportCandidates,
					Fingerprint:      fp,
					Reused:           true,
				}
			}
			// Schema drift hydrating a cache unit: fall through and re-parse.
			slog.Debug("scan.cache.drift", "path", f.RelPath)
		}
	}

	res := ScanFile(root, f.Path, opts.MaxFileSize)

	if res.SkipReason == "" {
		res.Fingerprint = fp
		if opts.Cache != nil {
			if payload, err := json.Marshal(cacheUnit{
				Hash:             fp,
				Functions:        res.Functions,
				Edges:            res.Edges,
				Unresolved:       res.Unresolved,
				ImportCandidates: res.ImportCandidates,
			}); err == nil {
				opts.Cache.Store(f.RelPath, fp, opts.HashMode, payload)
			}
		}
	}

	return res
}

// SortFiles orders files by RelPath so repeated runs dispatch (and, at
// --workers 1, complete) in the same order.
func SortFiles(files []discover.FileInfo) {
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
}
