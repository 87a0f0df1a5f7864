package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"clausewise/internal/config"
	"clausewise/internal/domain"
	"clausewise/internal/logger"
	"clausewise/internal/tui"
)

const usage = `Usage: clausewise [--config=clausewise.yaml] <command> [flags] [args]

Commands:
  review   [--session=id] [--json] <contract.pdf|.docx|.txt>   tag clauses, build the session index, browse
  report   [--out=file] <contract.pdf|.docx|.txt>               write a plain-text risk report
  ask      [--session=id] [--k=n] [--answer] <question>          search (or answer from) a session index
  classify <clause text>                                         label a single clause
  drop     [--session=id]                                        delete a session index
`

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./clausewise.yaml or ~/.config/clausewise/config.yaml)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, command string, args []string) error {
	interactive := command == "review"
	var lg logger.Logger
	if interactive {
		// the TUI owns the terminal; log to the file only
		lg = logger.NewFileLogger(cfg.Log.File)
	} else {
		lg = logger.NewZapLogger(cfg.Log.File, cfg.Log.Production)
	}
	defer lg.Sync()

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "review":
		return a.review(ctx, args)
	case "report":
		return a.report(ctx, args)
	case "ask":
		return a.ask(ctx, args)
	case "classify":
		return a.classify(ctx, args)
	case "drop":
		return a.drop(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}

func (a *app) review(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	session := fs.String("session", "", "session id the index is built under (default \"default\")")
	asJSON := fs.Bool("json", false, "print the tagged batch as JSON instead of opening the browser")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("review needs exactly one contract file")
	}

	rev, err := a.svc.Review(ctx, fs.Arg(0), *session)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(os.Stdout, map[string]any{
			"session":     rev.Session,
			"filename":    rev.Batch.Filename,
			"batch_id":    rev.Batch.ID,
			"num_clauses": len(rev.Batch.Clauses),
			"clauses":     rev.Batch.Clauses,
		})
	}
	m := tui.New(ctx, a.svc, rev.Batch, rev.Session, a.cfg.Query.TopK)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	out := fs.String("out", "", "output file (default <contract>_report.txt)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("report needs exactly one contract file")
	}
	path := fs.Arg(0)
	if *out == "" {
		*out = path + "_report.txt"
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	_, pages, err := a.svc.Report(ctx, path, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(*out)
		return err
	}
	fmt.Printf("Wrote %s (%d pages)\n", *out, pages)
	return nil
}

func (a *app) ask(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	session := fs.String("session", "", "session id to search (default \"default\")")
	k := fs.Int("k", 0, "number of chunks to retrieve (default from config)")
	answer := fs.Bool("answer", false, "generate an answer from the retrieved chunks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.Join(fs.Args(), " ")

	if *answer {
		ans, err := a.svc.Answer(ctx, question, *session, *k)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, ans)
	}
	chunks, err := a.svc.Ask(ctx, question, *session, *k)
	if err != nil {
		var ue *domain.UninitializedSessionError
		if errors.As(err, &ue) {
			return fmt.Errorf("%w (run `clausewise review --session=%s <file>` first)", err, ue.SessionID)
		}
		return err
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return writeJSON(os.Stdout, map[string]any{
		"answer":  strings.Join(parts, "\n\n"),
		"sources": chunks,
	})
}

func (a *app) classify(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return errors.New("classify needs clause text as arguments or on stdin")
	}
	labels, err := a.svc.Classify(ctx, text)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, map[string]any{"clause": text, "predicted_labels": labels})
}

func (a *app) drop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drop", flag.ContinueOnError)
	session := fs.String("session", "", "session id to delete (default \"default\")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.svc.Drop(ctx, *session)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
