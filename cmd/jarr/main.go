// Command jarr streams the elements of a top-level JSON array from a file
// or stdin, one element per line, optionally filtered through a JSONPath
// expression.  Compressed input (gzip, zstd, lz4) is detected automatically.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/theory/jsonpath"

	"github.com/xdg-go/jarr"
	"github.com/xdg-go/jarr/compress"
)

func main() {
	signal.Ignore(syscall.SIGPIPE)

	cfg := defaultConfig()
	useColors := isatty.IsTerminal(os.Stdout.Fd())
	var configPath string

	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&cfg.File, "file", "", "input filename (stdin if omitted)")
	flag.StringVar(&cfg.Input, "in", "auto", "input format: auto, json, gzip, zstd, lz4")
	flag.StringVar(&cfg.Filter, "filter", "", "JSONPath expression applied to each element")
	flag.IntVar(&cfg.Indent, "indent", 0, "indent step for output (0 means one element per line)")
	flag.IntVar(&cfg.MaxDepth, "maxdepth", jarr.DefaultMaxDepth, "maximum container nesting depth")
	flag.BoolVar(&cfg.Comments, "comments", false, "allow // and /* */ comments in input")
	flag.BoolVar(&cfg.TrailingCommas, "trailing-commas", false, "allow trailing commas in input")
	flag.IntVar(&cfg.Capacity, "capacity", 0, "initial element buffer capacity")
	flag.Float64Var(&cfg.Rate, "rate", 0, "max source pulls per second (0 means unlimited)")
	flag.BoolFunc("colors", "force using colors", func(string) error {
		useColors = true
		return nil
	})
	flag.BoolFunc("nocolors", "disable colors", func(string) error {
		useColors = false
		return nil
	})
	flag.Parse()

	if configPath != "" {
		fileCfg, err := loadConfig(configPath)
		if err != nil {
			fatalError("error loading config %q: %s", configPath, err)
		}
		mergeConfig(cfg, fileCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var input io.Reader
	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			fatalError("error opening %q: %s", cfg.File, err)
		}
		defer f.Close()
		input = f
	} else {
		input = os.Stdin
	}

	src, err := openSource(input, cfg.Input)
	if err != nil {
		fatalError("error: %s", err)
	}
	if cfg.Rate > 0 {
		src = jarr.NewThrottledSource(src, cfg.Rate)
	}

	var filter *jsonpath.Path
	if cfg.Filter != "" {
		filter, err = jsonpath.Parse(cfg.Filter)
		if err != nil {
			fatalError("invalid JSONPath %q: %s", cfg.Filter, err)
		}
	}

	var stdout io.Writer = os.Stdout
	if useColors {
		stdout = colorable.NewColorableStdout()
	}
	out := bufio.NewWriter(stdout)
	defer out.Flush()

	stream := jarr.NewStream[[]byte](src, jarr.RawDecoder{})
	stream.MaxDepth(cfg.MaxDepth)
	if cfg.Comments {
		stream.CommentHandling(jarr.CommentsSkip)
	}
	stream.AllowTrailingCommas(cfg.TrailingCommas)
	if cfg.Capacity > 0 {
		stream.InitialCapacity(cfg.Capacity)
	}
	defer stream.Close()

	for {
		elem, err := stream.Next(ctx)
		if err == io.EOF {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fatalError("error: %s", err)
		}
		if err := printElement(out, elem, filter, cfg.Indent, useColors); err != nil {
			if errors.Is(err, syscall.EPIPE) {
				return
			}
			fatalError("error: %s", err)
		}
		if err := out.Flush(); err != nil {
			if errors.Is(err, syscall.EPIPE) {
				return
			}
			fatalError("error: %s", err)
		}
	}
}

// openSource maps the -in flag to a chunk source, sniffing the stream when
// the format is "auto".
func openSource(r io.Reader, format string) (jarr.ChunkSource, error) {
	switch format {
	case "auto":
		return compress.NewDetectedSource(r)
	case "json":
		return compress.NewSource(r, compress.None)
	case "gzip":
		return compress.NewSource(r, compress.Gzip)
	case "zstd":
		return compress.NewSource(r, compress.Zstd)
	case "lz4":
		return compress.NewSource(r, compress.LZ4)
	default:
		return nil, fmt.Errorf("invalid input format %q", format)
	}
}

func printElement(out io.Writer, elem []byte, filter *jsonpath.Path, indent int, colors bool) error {
	if filter != nil {
		var data any
		if err := json.Unmarshal(elem, &data); err != nil {
			return err
		}
		for _, result := range filter.Select(data) {
			enc, err := marshalIndented(result, indent)
			if err != nil {
				return err
			}
			if err := writeLine(out, enc, colors); err != nil {
				return err
			}
		}
		return nil
	}
	if indent > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, elem, "", strings.Repeat(" ", indent)); err != nil {
			return err
		}
		elem = buf.Bytes()
	}
	return writeLine(out, elem, colors)
}

func marshalIndented(v any, indent int) ([]byte, error) {
	if indent > 0 {
		return json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	}
	return json.Marshal(v)
}

func writeLine(out io.Writer, data []byte, colors bool) error {
	var err error
	if colors {
		err = writeColored(out, data)
	} else {
		_, err = out.Write(data)
	}
	if err != nil {
		return err
	}
	_, err = out.Write([]byte{'\n'})
	return err
}

func fatalError(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
