// Command textgen drives the reader/writer pipeline over one or more
// Markdown inputs: generate executes embedded programs and splices their
// output back into named sections; clear truncates generated sections or
// strips flashcard-state annotations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/weavedoc/textgen/internal/compilecache"
	"github.com/weavedoc/textgen/internal/config"
	"github.com/weavedoc/textgen/internal/executor"
	"github.com/weavedoc/textgen/internal/reader"
	"github.com/weavedoc/textgen/internal/section"
	"github.com/weavedoc/textgen/internal/util"
	"github.com/weavedoc/textgen/internal/version"
	"github.com/weavedoc/textgen/internal/writer"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// Exit-code bits for the generate subcommand.
const (
	generateBitRead     = 1 << 0
	generateBitValidate = 1 << 1
	generateBitWrite    = 1 << 2
)

// Exit-code bit for the clear subcommand.
const clearBitError = 1 << 0

// maxConcurrentFiles bounds how many input files are processed at once;
// writers for different files proceed concurrently through this pool.
const maxConcurrentFiles = 8

func main() {
	app := &cli.App{
		Name:                   "textgen",
		Usage:                  "generate and clear embedded program output in Markdown documents",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			generateCommand(),
			clearCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if exitErr.Error() != "" {
				fmt.Fprintln(os.Stderr, exitErr.Error())
			}
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "execute embedded programs and splice their output into named sections",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "timestamp",
				Aliases: []string{"t", "T"},
				Usage:   "stamp a fresh generate header on every write that produces output",
				Value:   true,
			},
			&cli.BoolFlag{
				Name:  "init-flashcards",
				Usage: "pad short flashcard state groups with fresh entries before rendering",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "code-cache",
				Usage: "folder for the persistent compile cache",
			},
			&cli.BoolFlag{
				Name:  "no-code-cache",
				Usage: "compile every program directly, bypassing the persistent cache",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "re-run after any input file changes, until interrupted",
			},
		},
		Action: runGenerate,
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "truncate generated sections or strip flashcard-state annotations",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "type",
				Aliases:  []string{"t"},
				Usage:    "one or more of: content, fc_state",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "re-run after any input file changes, until interrupted",
			},
		},
		Action: runClear,
	}
}

type generateOptions struct {
	timestamp      bool
	initFlashcards bool
	cachePath      string
}

func runGenerate(c *cli.Context) error {
	inputs := c.Args().Slice()
	if len(inputs) == 0 {
		return errors.New("usage: textgen generate [flags] inputs...")
	}

	cachePath := c.String("code-cache")
	if c.Bool("no-code-cache") {
		cachePath = ""
	}
	opts := generateOptions{
		timestamp:      c.Bool("timestamp"),
		initFlashcards: c.Bool("init-flashcards"),
		cachePath:      cachePath,
	}

	run := func() { runGenerateOnce(inputs, opts) }

	if c.Bool("watch") {
		return watchAndRerun(c.Context, inputs, run)
	}

	if exitCode := runGenerateOnce(inputs, opts); exitCode != 0 {
		return cli.Exit("", exitCode)
	}
	return nil
}

func runGenerateOnce(inputs []string, opts generateOptions) int {
	ex := executor.NewUgoExecutor()

	cache, err := compilecache.Open(opts.cachePath, ex)
	if err != nil {
		log.Printf("textgen: opening compile cache: %v", err)
		return generateBitRead
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Printf("textgen: persisting compile cache: %v", err)
		}
	}()

	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("textgen: %v", err)
		return generateBitRead
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		log.Printf("textgen: loading config: %v", err)
		cfg = config.Default()
	}

	registry := reader.NewRegistry(cache.Executor())
	sections := section.NewRegistry()
	bridge := util.NewLockBridge(maxConcurrentFiles)

	var mu sync.Mutex
	exitCode := 0
	record := func(bit int) {
		mu.Lock()
		exitCode |= bit
		mu.Unlock()
	}

	var g errgroup.Group
	for _, path := range inputs {
		path := path
		g.Go(func() error {
			return bridge.Run(context.Background(), func() error {
				record(generateOneFile(path, registry, sections, cfg, opts))
				return nil
			})
		})
	}
	_ = g.Wait()
	return exitCode
}

// generateOneFile runs every data block of one input document and
// returns the OR of the exit bits its failures map to.
func generateOneFile(path string, registry *reader.Registry, sections *section.Registry, cfg *config.Config, opts generateOptions) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Printf("textgen: %s: %v", path, err)
		return generateBitRead
	}

	doc, err := registry.Cached(abs)
	if err != nil {
		log.Printf("textgen: %s: %v", path, err)
		return generateExitBit(err)
	}

	specs := doc.Pipe(reader.PipeOptions{
		SectionRegistry: sections,
		Config:          cfg,
		InitFlashcards:  opts.initFlashcards,
	})

	exitCode := 0
	for _, spec := range specs {
		w := writer.New(spec.Program, spec.InitCodes, spec.Env, writer.GenOpts{Timestamp: opts.timestamp})
		if err := w.Write(); err != nil {
			log.Printf("textgen: %s: %v", path, err)
			exitCode |= generateExitBit(err)
		}
	}
	return exitCode
}

// generateExitBit classifies an error from the reader/writer pipeline
// into one of the generate subcommand's exit-code bits.
func generateExitBit(err error) int {
	var parseErr *xerrors.ParseError
	var ioErr *xerrors.IOError
	var validationErr *xerrors.ValidationError
	var writeErr *xerrors.WriteError

	switch {
	case errors.As(err, &parseErr), errors.As(err, &ioErr):
		return generateBitRead
	case errors.As(err, &validationErr):
		return generateBitValidate
	case errors.As(err, &writeErr):
		return generateBitWrite
	default:
		return generateBitValidate
	}
}

func runClear(c *cli.Context) error {
	inputs := c.Args().Slice()
	if len(inputs) == 0 {
		return errors.New("usage: textgen clear --type TYPE inputs...")
	}

	types, err := parseClearTypes(c.StringSlice("type"))
	if err != nil {
		return err
	}

	run := func() { runClearOnce(inputs, types) }

	if c.Bool("watch") {
		return watchAndRerun(c.Context, inputs, run)
	}

	if exitCode := runClearOnce(inputs, types); exitCode != 0 {
		return cli.Exit("", exitCode)
	}
	return nil
}

func parseClearTypes(raw []string) (writer.ClearType, error) {
	var types writer.ClearType
	for _, r := range raw {
		switch r {
		case "content":
			types |= writer.ClearContent
		case "fc_state":
			types |= writer.ClearFlashcardState
		default:
			return 0, fmt.Errorf("unknown clear type %q (want content or fc_state)", r)
		}
	}
	return types, nil
}

func runClearOnce(inputs []string, types writer.ClearType) int {
	sections := section.NewRegistry()
	bridge := util.NewLockBridge(maxConcurrentFiles)

	var mu sync.Mutex
	exitCode := 0

	var g errgroup.Group
	for _, path := range inputs {
		path := path
		g.Go(func() error {
			return bridge.Run(context.Background(), func() error {
				abs, err := filepath.Abs(path)
				if err == nil {
					err = writer.NewClear(sections, abs, writer.ClearOpts{Types: types}).Write()
				}
				if err != nil {
					log.Printf("textgen: %s: %v", path, err)
					mu.Lock()
					exitCode |= clearBitError
					mu.Unlock()
				}
				return nil
			})
		})
	}
	_ = g.Wait()
	return exitCode
}

// watchAndRerun runs fn once immediately, then again every time one of
// inputs changes on disk, until a termination signal or ctx is done.
func watchAndRerun(ctx context.Context, inputs []string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range inputs {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if err := watcher.Add(abs); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fn()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("textgen: %s changed, re-running", event.Name)
				fn()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("textgen: watch error: %v", err)
		case <-sigCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
