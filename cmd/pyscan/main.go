// Command pyscan statically extracts a Python repository's call graph.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/crv/py-callscan/internal/cache"
	"github.com/crv/py-callscan/internal/config"
	"github.com/crv/py-callscan/internal/discover"
	"github.com/crv/py-callscan/internal/mcpserver"
	"github.com/crv/py-callscan/internal/report"
	"github.com/crv/py-callscan/internal/resolve"
	"github.com/crv/py-callscan/internal/scanner"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "pyscan",
		Short:   "Static call-graph extractor for Python repositories",
		Version: version,
	}

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newMCPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newScanCmd() *cobra.Command {
	var (
		root           string
		out            string
		maxFileSize    int64
		workers        int
		skipDirs       []string
		cacheFile      string
		hashMode       string
		ignoreBuiltins bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a repository and emit its call graph as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(root, out, maxFileSize, workers, skipDirs, cacheFile, hashMode, ignoreBuiltins,
				cmd.Flags().Changed("max-file-size"), cmd.Flags().Changed("hash-mode"))
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "scan root")
	cmd.Flags().StringVar(&out, "out", "", "write report JSON here; otherwise stdout")
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", 1_000_000, "skip files exceeding this size in bytes")
	cmd.Flags().IntVar(&workers, "workers", 1, "parallel parsing degree")
	cmd.Flags().StringArrayVar(&skipDirs, "skip-dir", nil, "directory basenames to exclude (repeatable)")
	cmd.Flags().StringVar(&cacheFile, "cache-file", "", "read+write incremental cache at this path")
	cmd.Flags().StringVar(&hashMode, "hash-mode", "stat", "fingerprint mode: stat or sha1")
	cmd.Flags().BoolVar(&ignoreBuiltins, "ignore-builtin-unresolved", false, "drop unresolved calls naming a runtime built-in")

	return cmd
}

func newMCPCmd() *cobra.Command {
	var call string
	var callArgs string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the scanner as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := mcpserver.NewServer()

			if call != "" {
				result, err := srv.CallTool(context.Background(), call, json.RawMessage(callArgs))
				if err != nil {
					return err
				}
				for _, c := range result.Content {
					if tc, ok := c.(*mcp.TextContent); ok {
						if result.IsError {
							fmt.Fprintln(os.Stderr, tc.Text)
						} else {
							fmt.Println(tc.Text)
						}
					}
				}
				if result.IsError {
					os.Exit(1)
				}
				return nil
			}

			return srv.MCPServer().Run(context.Background(), &mcp.StdioTransport{})
		},
	}

	cmd.Flags().StringVar(&call, "call", "", "invoke a single tool directly and print its result instead of serving")
	cmd.Flags().StringVar(&callArgs, "args", "", "JSON arguments for --call")

	return cmd
}

func runScan(root, out string, maxFileSize int64, workers int, skipDirFlags []string, cacheFile, hashMode string, ignoreBuiltins bool, maxFileSizeSet, hashModeSet bool) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	cfg := config.Load(absRoot)
	if !maxFileSizeSet {
		maxFileSize = cfg.EffectiveMaxFileSize(maxFileSize)
	}
	if !hashModeSet {
		hashMode = cfg.EffectiveHashMode(hashMode)
	}
	skipDirs := cfg.AllSkipDirs(skipDirFlags)

	files, err := discover.Discover(context.Background(), absRoot, &discover.Options{SkipDirs: skipDirs})
	if err != nil {
		log.Fatalf("discover err=%v", err)
	}
	scanner.SortFiles(files)

	var c *cache.Cache
	if cacheFile != "" {
		c, err = cache.Open(cacheFile)
		if err != nil {
			slog.Warn("cache.open.failed", "path", cacheFile, "err", err)
		} else {
			defer c.Close()
		}
	}

	mode := cache.HashMode(hashMode)
	edgeCap := 0
	if v := os.Getenv("CRV_PY_EDGE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			edgeCap = n
		}
	}

	run := scanner.ScanAll(absRoot, files, scanner.Options{
		Workers:     workers,
		MaxFileSize: maxFileSize,
		Cache:       c,
		HashMode:    mode,
		EdgeCap:     edgeCap,
	})

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

	edges, unresolved, counters, importedHist, unresolvedHist := resolve.Resolve(funcs, edges, unresolved, candidates, ignoreBuiltins)

	var cacheUnits map[string][]byte
	if c != nil {
		cacheUnits = c.All()
	}

	rep := report.Build(report.BuildInput{
		Root:           absRoot,
		Workers:        workers,
		Results:        run.Results,
		Functions:      funcs,
		Edges:          edges,
		Unresolved:     unresolved,
		ParsedFiles:    run.ParsedFiles,
		ReusedFiles:    run.ReusedFiles,
		SkippedSize:    run.SkippedSize,
		SkippedParse:   run.SkippedParse,
		PrunedFiles:    run.PrunedFiles,
		Counters:       counters,
		ImportedHist:   importedHist,
		UnresolvedHist: unresolvedHist,
		HasCache:       c != nil,
		CacheUnits:     cacheUnits,
		HashMode:       hashMode,
	})

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	} else {
		fmt.Println(string(data))
	}

	fmt.Fprintf(os.Stderr,
		"PYSCAN_STATS files=%d functions=%d edges=%d unresolved=%d reused_files=%d parsed_files=%d resolved_cross=%d imported_resolved=%d imported_missing=%d ignored_builtins=%d pruned=%d\n",
		run.ParsedFiles+run.ReusedFiles, len(funcs), len(edges), len(unresolved),
		run.ReusedFiles, run.ParsedFiles, counters.ResolvedCrossModule, counters.ResolvedExternal,
		counters.ImportedMissing, counters.IgnoredBuiltins, rep.Cache.PrunedFiles,
	)

	if strings.Contains(os.Getenv("CRV_DEBUG"), "pyscan") {
		diag, _ := json.Marshal(map[string]any{
			"imported_hist":   importedHist,
			"unresolved_hist": unresolvedHist,
		})
		fmt.Fprintln(os.Stderr, string(diag))
	}

	return nil
}
