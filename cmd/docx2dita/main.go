package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dgallion1/docx2dita/internal/config"
	"github.com/dgallion1/docx2dita/internal/convert"
	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/doctree"
	"github.com/dgallion1/docx2dita/internal/images"
	"github.com/dgallion1/docx2dita/internal/parser"
	"github.com/dgallion1/docx2dita/internal/substitute"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	cfg := config.Load()
	var err error
	switch args[0] {
	case "convert":
		err = cmdConvert(ctx, cfg, args[1:], stdin, stdout, stderr)
	case "prefs":
		err = cmdPrefs(cfg, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		printUsage(stderr)
	default:
		fmt.Fprintf(stderr, "docx2dita: %v\n", err)
	}
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `docx2dita: convert procedure documents into DITA task topics

usage:
  docx2dita convert [flags] <input> <output.dita> <taskId>
  docx2dita prefs [-prefs file] list
  docx2dita prefs [-prefs file] set <original> <replacement>
  docx2dita prefs [-prefs file] keyref <original> <keyId>
  docx2dita prefs [-prefs file] delete <original>
  docx2dita prefs [-prefs file] import <file>

Inputs may be .docx, .md, .html, .txt or .pdf. Run "docx2dita convert -h"
for conversion flags.
`)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func cmdConvert(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		prefsPath    = fs.String("prefs", cfg.PreferencesPath, "preferences store (YAML or JSON)")
		imageMode    = fs.String("images", "skip", "image handling: skip, auto or prompt")
		imageDir     = fs.String("image-dir", cfg.ImageDir, "directory for extracted images, relative to the output file")
		placement    = fs.String("placement", cfg.ImagePlacement, "figure placement: last or anchored")
		shortDesc    = fs.Bool("shortdesc", cfg.DetectShortDesc, "offer the paragraph after the title as a short description")
		notes        = fs.Bool("notes", cfg.DetectNotes, `turn paragraphs starting with "Note:" into notes`)
		confirmNotes = fs.Bool("confirm-notes", cfg.ConfirmNotes, "ask before turning a paragraph into a note")
		answer       = fs.String("answer", "ask", "how to answer questions: ask, yes or no")
		useLLM       = fs.Bool("llm", false, "answer questions with Claude (needs ANTHROPIC_API_KEY)")
		verbose      = fs.Bool("v", false, "verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(stderr, "convert requires <input> <output.dita> <taskId>")
		return errUsage
	}
	input, output, taskID := fs.Arg(0), convert.EnsureExt(fs.Arg(1)), fs.Arg(2)
	log := newLogger(stderr, *verbose)

	mode, err := images.ParseMode(*imageMode)
	if err != nil {
		return err
	}
	place, err := images.ParsePlacement(*placement)
	if err != nil {
		return err
	}

	prompt := decide.NewPrompt(stdin, stderr)
	decider, err := pickDecider(cfg, *answer, *useLLM, prompt, log)
	if err != nil {
		return err
	}
	if c, ok := decider.(*decide.Claude); ok {
		defer c.Close()
	}

	table, err := substitute.Load(*prefsPath)
	if err != nil {
		log.Warn("ignoring preferences", "error", err)
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	src, err := parser.Open(data, input, parser.Options{PDFFallback: cfg.PDFFallbackPdftotext})
	if err != nil {
		return fmt.Errorf("%w: %w", convert.ErrMalformedInput, err)
	}

	outDir := filepath.Dir(output)
	dir := *imageDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(outDir, dir)
	}
	sink := &images.DirSink{Chooser: imageChooser(*answer, dir, prompt)}

	res, err := convert.Run(ctx, src, convert.Request{
		TaskID:          taskID,
		DetectShortDesc: *shortDesc,
		DetectNotes:     *notes,
		ConfirmNotes:    *confirmNotes,
		Decider:         decider,
		Rules:           table.Rules(),
		Images:          images.Policy{Mode: mode, Dir: dir},
		Placement:       place,
		Sink:            sink,
		HrefRoot:        outDir,
	}, log)
	if err != nil {
		return err
	}
	if err := convert.WriteFile(ctx, output, res.Output); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %s (%d steps)\n", output, res.Steps)
	fmt.Fprint(stdout, res.Diagnostics.Summary())
	return nil
}

func pickDecider(cfg config.Config, answer string, useLLM bool, prompt *decide.Prompt, log *slog.Logger) (decide.Decider, error) {
	if useLLM {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("-llm needs ANTHROPIC_API_KEY")
		}
		return decide.NewClaude(cfg.AnthropicAPIKey, cfg.AnthropicModel, log,
			decide.WithTimeout(cfg.DecisionTimeout)), nil
	}
	switch answer {
	case "ask":
		return prompt, nil
	case "yes":
		return decide.Always(true), nil
	case "no":
		return decide.Always(false), nil
	}
	return nil, fmt.Errorf("unknown -answer %q (want ask, yes or no)", answer)
}

// imageChooser picks destinations in prompt mode. Relative answers are
// placed under dir.
func imageChooser(answer, dir string, prompt *decide.Prompt) images.Chooser {
	return func(ctx context.Context, rec doctree.ImageRecord, n int, suggested string) string {
		switch answer {
		case "yes":
			return filepath.Join(dir, suggested)
		case "no":
			return ""
		}
		p := prompt.Path(ctx, fmt.Sprintf("Save image %d (%s)", n, images.Extension(rec)), suggested)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
}

func cmdPrefs(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("prefs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prefsPath := fs.String("prefs", cfg.PreferencesPath, "preferences store (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}

	table, err := substitute.Load(*prefsPath)
	if err != nil {
		return err
	}

	need := func(n int) error {
		if len(rest)-1 != n {
			fmt.Fprintf(stderr, "prefs %s takes %d argument(s)\n", rest[0], n)
			return errUsage
		}
		return nil
	}

	switch rest[0] {
	case "list":
		if err := need(0); err != nil {
			return err
		}
		for _, r := range table.Rules() {
			if r.Keyref {
				fmt.Fprintf(stdout, "%s : keyref %s\n", r.From, r.To)
			} else {
				fmt.Fprintf(stdout, "%s : %s\n", r.From, r.To)
			}
		}
		return nil
	case "set":
		if err := need(2); err != nil {
			return err
		}
		if rest[1] == "" {
			return fmt.Errorf("original text must not be empty")
		}
		table.Set(substitute.Rule{From: rest[1], To: rest[2]})
	case "keyref":
		if err := need(2); err != nil {
			return err
		}
		if rest[1] == "" {
			return fmt.Errorf("original text must not be empty")
		}
		table.Set(substitute.Rule{From: rest[1], To: rest[2], Keyref: true})
	case "delete":
		if err := need(1); err != nil {
			return err
		}
		if !table.Delete(rest[1]) {
			return fmt.Errorf("no rule for %q", rest[1])
		}
	case "import":
		if err := need(1); err != nil {
			return err
		}
		data, err := os.ReadFile(rest[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", rest[1], err)
		}
		rules := substitute.ParseLines(string(data))
		for _, r := range rules {
			table.Set(r)
		}
		fmt.Fprintf(stdout, "imported %d rule(s)\n", len(rules))
	default:
		fmt.Fprintf(stderr, "unknown prefs command: %s\n", rest[0])
		return errUsage
	}

	if err := substitute.Save(*prefsPath, table); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d rule(s) in %s\n", table.Len(), *prefsPath)
	return nil
}
