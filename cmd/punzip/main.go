// Command punzip extracts a ZIP archive using a configurable number of
// worker goroutines and distribution strategy.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/no-more-secrets/p-unzip/internal/dist"
	"github.com/no-more-secrets/p-unzip/internal/engine"
	"github.com/no-more-secrets/p-unzip/internal/pathutil"
)

const usageText = `p-unzip: multithreaded unzipper.
Usage: punzip [options] file.zip

   -h          : show usage and exit
   -q          : suppress per-file log lines
   -g          : emit a diagnostic summary to stderr on success
   -j N        : use N worker threads; N is a positive integer, "max"
                 (hardware thread count), or "auto" (75% of it). Default 1.
   -d strategy : distribution strategy name. Default cyclic.
   -c N        : chunk size in bytes, or "max" to use the largest entry's
                 size. Default 4096.
   -t VALUE    : timestamp policy: "current" leaves mtimes untouched, an
                 integer sets a fixed mtime, anything else uses the
                 archived mtime unchanged.
   -o PREFIX   : output directory prefix, prepended to every extracted path
   -a          : enable the short-extension temp-rename optimization
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("punzip", flag.ContinueOnError)
	fs.SetOutput(new(discardWriter))

	var h, q, g, a bool
	var jobsArg, chunkArg, tsArg, outPrefix string
	strategy := dist.DefaultStrategy

	fs.BoolVar(&h, "h", false, "show usage and exit")
	fs.BoolVar(&q, "q", false, "suppress per-file log lines")
	fs.BoolVar(&g, "g", false, "emit diagnostic summary")
	fs.BoolVar(&a, "a", false, "enable short-extension optimization")
	fs.StringVar(&jobsArg, "j", "1", "worker count")
	fs.StringVar(&strategy, "d", dist.DefaultStrategy, "distribution strategy")
	fs.StringVar(&chunkArg, "c", "4096", "chunk size in bytes")
	fs.StringVar(&tsArg, "t", "", "timestamp policy")
	fs.StringVar(&outPrefix, "o", "", "output directory prefix")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, describeParseError(err))
		return 1
	}

	if h {
		fmt.Print(usageText)
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "expected exactly one positional argument (the zip file), got %d\n", fs.NArg())
		return 1
	}
	zipPath := fs.Arg(0)

	jobs, err := resolveJobs(jobsArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	chunkSize, err := resolveChunkSize(chunkArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	prefix, err := pathutil.New(outPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -o prefix %q: %v\n", outPrefix, err)
		return 1
	}

	logger := slog.New(slog.DiscardHandler)
	if !q {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	e := engine.New(
		engine.WithJobs(jobs),
		engine.WithQuiet(q),
		engine.WithStrategy(strategy),
		engine.WithChunkSize(chunkSize),
		engine.WithTsXform(resolveTsXform(tsArg)),
		engine.WithShortExts(a),
		engine.WithOutPrefix(prefix),
		engine.WithLogger(logger),
	)

	summary, err := e.Extract(zipPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if g {
		fmt.Fprint(os.Stderr, summary.String())
	}
	return 0
}

// resolveJobs implements -j's three forms: a positive integer, "max" for
// the hardware thread count, or "auto" for 75% of it, rounded.
func resolveJobs(s string) (int, error) {
	switch s {
	case "max":
		return runtime.NumCPU(), nil
	case "auto":
		return int(math.Round(float64(runtime.NumCPU()) * 0.75)), nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid number of jobs: %s", s)
		}
		return n, nil
	}
}

// resolveChunkSize implements -c's two forms: an explicit byte count, or
// "max" which the engine resolves to the archive's largest entry size.
func resolveChunkSize(s string) (uint64, error) {
	if s == "max" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk size: %s", s)
	}
	return n, nil
}

// resolveTsXform implements -t's three forms: "current" disables mtime
// assignment, an integer fixes every extracted file's mtime, and anything
// else (including the flag being unset) falls back to the identity
// transform.
func resolveTsXform(s string) engine.TsXform {
	switch {
	case s == "current":
		return engine.NoopTsXform
	case s == "":
		return engine.IdentityTsXform
	default:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return engine.ConstantTsXform(n)
		}
		return engine.IdentityTsXform
	}
}

var optNamePattern = regexp.MustCompile(`-([A-Za-z][\w-]*)`)

// describeParseError translates one of flag.FlagSet's three failure
// shapes into the option-parsing vocabulary the reference implementation
// used: a missing value, a value attached to a flag that takes none, or
// an unrecognized flag.
func describeParseError(err error) string {
	msg := err.Error()
	name := "?"
	if m := optNamePattern.FindStringSubmatch(msg); m != nil {
		name = m[1]
	}
	switch {
	case strings.Contains(msg, "flag needs an argument"):
		return fmt.Sprintf("option %s must take a value", name)
	case strings.Contains(msg, "invalid boolean value"):
		return fmt.Sprintf("option %s does not take a value", name)
	case strings.Contains(msg, "provided but not defined"):
		return fmt.Sprintf("option %s is not recognized", name)
	default:
		return err.Error()
	}
}

// discardWriter suppresses flag.FlagSet's own error/usage output so that
// describeParseError's translated message is the only thing printed.
type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }
