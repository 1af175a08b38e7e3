// Package main is the PDF Buddy CLI entry point.
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
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/pdfbuddy/internal/api"
	"github.com/hyperjump/pdfbuddy/internal/chat"
	"github.com/hyperjump/pdfbuddy/internal/cli"
	"github.com/hyperjump/pdfbuddy/internal/config"
	"github.com/hyperjump/pdfbuddy/internal/inspect"
	"github.com/hyperjump/pdfbuddy/internal/intake"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/notify"
	"github.com/hyperjump/pdfbuddy/internal/server"
	"github.com/hyperjump/pdfbuddy/internal/tracker"
	"github.com/hyperjump/pdfbuddy/internal/watcher"
	"github.com/hyperjump/pdfbuddy/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/pdfbuddy/config.yaml"
	defaultEnvFile    = ".env"
	defaultServerURL  = "http://localhost:8090"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and a missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded ("" when nothing was read).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	code := 0
	switch command {
	case "upload":
		code = runUpload(args)
	case "chat":
		code = runChat(args)
	case "ask":
		code = runAsk(args)
	case "find":
		code = runFind(args)
	case "preview":
		code = runPreview(args)
	case "serve", "server":
		code = runServe(args)
	case "watch":
		runWatch()
	case "version":
		fmt.Printf("pdfbuddy %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		code = 1
	}
	// Commands return instead of exiting so their deferred teardown runs first.
	os.Exit(code)
}

// commonFlags are accepted by every command that talks to the backend.
type commonFlags struct {
	configPath *string
	apiURL     *string
	debug      *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		apiURL:     fs.String("api-url", "", "backend base URL (overrides "+config.EnvAPIURL+" and config)"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// resolveConfig loads the config, then .env and the environment, then the --api-url flag.
func resolveConfig(f *commonFlags) (*config.Config, string, error) {
	cfg, path, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg, defaultEnvFile); err != nil {
		return nil, "", err
	}
	if *f.apiURL != "" {
		cfg.API.BaseURL = strings.TrimSpace(*f.apiURL)
	}
	if *f.debug {
		cfg.Debug = true
	}
	return cfg, path, nil
}

// app holds the components shared by the client commands.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	client     *api.Client
	notes      *notify.Recorder
	tracker    *tracker.Tracker
	chat       *chat.Controller
}

// newApp wires the backend client, the tracker, and the chat controller. Toasts go to the
// recorder, the log, and toasts when it is not nil.
func newApp(cfg *config.Config, configPath string, logger *zap.Logger, toasts io.Writer) *app {
	notes := notify.NewRecorder(100)
	notifiers := []notify.Notifier{notes, notify.Logger(logger)}
	if toasts != nil {
		notifiers = append(notifiers, cli.Notifier(toasts))
	}
	notifier := notify.Multi(notifiers...)

	clientOpts := []api.Option{api.WithLogger(logger)}
	if cfg.API.Timeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(cfg.API.Timeout))
	}
	client := api.NewClient(cfg.API.BaseURL, clientOpts...)

	tr := tracker.New(client,
		tracker.WithLogger(logger),
		tracker.WithNotifier(notifier),
		tracker.WithUploadRamp(cfg.Upload.Ramp),
		tracker.WithIndexRamp(cfg.Upload.IndexRamp),
	)
	ctl := chat.New(client, tr,
		chat.WithTopSearches(cfg.Chat.TopSearches),
		chat.WithModel(cfg.Chat.Model),
		chat.WithMaxTokens(cfg.Chat.MaxTokens),
		chat.WithClearReferencesOnError(cfg.Chat.ClearReferencesOnError),
		chat.WithLogger(logger),
		chat.WithNotifier(notifier),
	)
	return &app{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		client:     client,
		notes:      notes,
		tracker:    tr,
		chat:       ctl,
	}
}

func (a *app) Close() {
	a.tracker.Close()
	_ = a.logger.Sync()
}

// setupCLI resolves config and builds an app for a one-shot or interactive command.
func setupCLI(f *commonFlags) *app {
	cfg, path, err := resolveConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("backend", zap.String("url", cfg.API.BaseURL), zap.String("config", path))
	return newApp(cfg, path, logger, os.Stderr)
}

// argsReorder moves any flags (and their values) that appear after the positional arguments
// to the front so that flag.Parse() sees them. Go's flag package stops at the first
// non-flag argument, so "pdfbuddy find \"query\" -top 3" would otherwise leave -top unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so quoting is optional.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// pageRange returns nil when neither bound was given.
func pageRange(start, end int) *models.PageRange {
	if start == 0 && end == 0 {
		return nil
	}
	return &models.PageRange{Start: start, End: end}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// progressPrinter writes a status line each time the document changes state or gains progress.
func progressPrinter(w io.Writer) func(models.Document) {
	last := make(map[string]string)
	return func(d models.Document) {
		line := cli.DocumentLine(d)
		if last[d.ID] == line {
			return
		}
		last[d.ID] = line
		if d.Status.Terminal() {
			fmt.Fprintf(w, "\r%s\n", line)
			return
		}
		fmt.Fprintf(w, "\r%s", line)
	}
}

// uploadFile loads path and submits it, waiting until the document is indexed or failed or ctx
// is done. ctx only ends the wait; the upload itself keeps going.
// Read errors are written to w; the tracker reports everything else through its notifier.
func uploadFile(ctx context.Context, w io.Writer, tr *tracker.Tracker, path string, pr *models.PageRange) (models.Document, error) {
	upload, err := inspect.Load(path, pr)
	if err != nil {
		fmt.Fprintf(w, "Cannot read %s: %v\n", path, err)
		return models.Document{}, err
	}
	sub, err := tr.Start(context.WithoutCancel(ctx), upload)
	if err != nil {
		return models.Document{}, err
	}
	select {
	case <-sub.Done():
		return sub.Result()
	case <-ctx.Done():
		return sub.Document(), ctx.Err()
	}
}

// sendQuestion sends text and waits for the exchange or for ctx. ctx only ends the wait; the
// request keeps going and the controller still records its outcome.
func sendQuestion(ctx context.Context, ctl *chat.Controller, text string) (*chat.Exchange, error) {
	type result struct {
		ex  *chat.Exchange
		err error
	}
	done := make(chan result, 1)
	go func() {
		ex, err := ctl.Send(context.WithoutCancel(ctx), text)
		done <- result{ex, err}
	}()
	select {
	case res := <-done:
		return res.ex, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func runUpload(args []string) int {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	common := addCommonFlags(fs)
	start := fs.Int("start", 0, "first page to index (with --end)")
	end := fs.Int("end", 0, "last page to index (with --start)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: pdfbuddy upload [flags] <file.pdf>...")
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	a := setupCLI(common)
	defer a.Close()
	if format == cli.OutputText {
		a.tracker.Subscribe(progressPrinter(os.Stderr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, path := range fs.Args() {
		if _, err := uploadFile(ctx, os.Stderr, a.tracker, path, pageRange(*start, *end)); err != nil {
			a.logger.Debug("upload failed", zap.String("path", path), zap.Error(err))
			failed++
		}
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nInterrupted")
			return 1
		}
	}
	if format == cli.OutputJSON {
		if err := cli.WriteDocuments(os.Stdout, a.tracker.Documents(), format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			return 1
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func runChat(args []string) int {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	common := addCommonFlags(fs)
	accept := fs.Bool("accept", false, "accept the disclaimer without prompting (it is still shown)")
	refs := fs.Bool("refs", false, "show references after every answer")
	var files stringList
	fs.Var(&files, "file", "PDF to upload before the session starts (repeatable)")
	_ = fs.Parse(argsReorder(args))
	files = append(files, fs.Args()...)

	a := setupCLI(common)
	defer a.Close()

	in := bufio.NewReader(os.Stdin)
	if *accept {
		cli.WriteNotice(os.Stdout, cli.Disclaimer)
	} else if !cli.Accept(os.Stdout, in, cli.Disclaimer) {
		fmt.Println("Disclaimer not accepted.")
		return 1
	}
	if *refs {
		a.chat.ShowReferences()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.tracker.Subscribe(progressPrinter(os.Stderr))
	for _, path := range files {
		if _, err := uploadFile(ctx, os.Stderr, a.tracker, path, nil); ctx.Err() != nil {
			a.logger.Debug("upload interrupted", zap.String("path", path), zap.Error(err))
			return 1
		}
	}

	r := &repl{app: a, in: in, out: os.Stdout}
	r.run(ctx)
	return 0
}

func runAsk(args []string) int {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	common := addCommonFlags(fs)
	refs := fs.Bool("refs", true, "print references after the answer")
	outputFormat := fs.String("output", "text", "output format: text or json")
	var files stringList
	fs.Var(&files, "file", "PDF to upload before asking (repeatable, at least one)")
	_ = fs.Parse(argsReorder(args))

	question := joinArgs(fs.Args())
	if len(files) == 0 || question == "" {
		fmt.Println("Usage: pdfbuddy ask --file <file.pdf> [--file ...] [flags] <question>")
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	a := setupCLI(common)
	defer a.Close()
	if format == cli.OutputText {
		a.tracker.Subscribe(progressPrinter(os.Stderr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, path := range files {
		if _, err := uploadFile(ctx, os.Stderr, a.tracker, path, nil); ctx.Err() != nil {
			a.logger.Debug("upload interrupted", zap.String("path", path), zap.Error(err))
			return 1
		}
	}
	// Send reports its own rejection (e.g. nothing indexed) through the notifier.
	ex, err := sendQuestion(ctx, a.chat, question)
	if err != nil {
		return 1
	}
	if *refs {
		a.chat.ShowReferences()
	}
	if err := cli.WriteExchange(os.Stdout, ex, a.chat.ReferencesVisible(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		return 1
	}
	if ex.Failed() {
		return 1
	}
	return 0
}

func runFind(args []string) int {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	common := addCommonFlags(fs)
	top := fs.Int("top", chat.DefaultTopSearches, "number of passages to retrieve")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	query := joinArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: pdfbuddy find [flags] <query>")
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	a := setupCLI(common)
	defer a.Close()

	resp, err := a.client.FindReferences(context.Background(), query, *top)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Find failed: %s\n", api.Detail(err, err.Error()))
		return 1
	}
	if err := cli.WriteReferences(os.Stdout, resp.References(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

func runPreview(args []string) int {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	common := addCommonFlags(fs)
	out := fs.String("out", "", "write the PDF to this file (default: stdout)")
	printURL := fs.Bool("url", false, "print the preview URL instead of downloading")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 1 {
		fmt.Println("Usage: pdfbuddy preview [flags] <document-id>")
		return 1
	}
	remoteID := fs.Arg(0)

	a := setupCLI(common)
	defer a.Close()

	if *printURL {
		fmt.Println(a.client.PreviewURL(remoteID))
		return 0
	}
	body, _, err := a.client.FetchPreview(context.Background(), remoteID)
	if err != nil {
		if api.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "No preview for %s\n", remoteID)
		} else {
			fmt.Fprintf(os.Stderr, "Preview failed: %s\n", api.Detail(err, err.Error()))
		}
		return 1
	}
	defer body.Close()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *out, err)
			return 1
		}
		defer f.Close()
		w = f
	}
	n, err := io.Copy(w, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Preview download failed: %v\n", err)
		return 1
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Saved %s (%s)\n", *out, utils.FormatSize(n))
	}
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	port := fs.Int("port", 0, "listen port (overrides config)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := resolveConfig(common)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return 1
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		return 1
	}
	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	a := newApp(cfg, resolvedConfigPath, logger, nil)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	queue := intake.New(a.tracker,
		intake.WithLogger(logger),
		intake.WithOnResult(func(r intake.Result) {
			switch {
			case r.Skipped:
				logger.Debug("intake skipped", zap.String("path", r.Path))
			case r.Err != nil:
				logger.Warn("intake failed", zap.String("path", r.Path), zap.Error(r.Err))
			default:
				logger.Info("intake indexed", zap.String("path", r.Path), zap.String("id", r.Document.ID), zap.Int("pages", r.Document.Pages))
			}
		}),
	)
	watchSvc := watcher.New(cfg.Watch.Directories, cfg.Watch.RecursiveOrDefault(), queue.Enqueue, watcher.WithLogger(logger))
	if err := watchSvc.Start(gctx); err != nil {
		logger.Error("Failed to start watcher", zap.Error(err))
		return 1
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(a.tracker, a.chat, a.client, a.notes, &cfg.Server, logger,
		server.WithWatch(watchSvc, resolvedConfigPath, cfg))

	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		watchSvc.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("Server failed", zap.Error(err))
		return 1
	}
	return 0
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: pdfbuddy watch <add|remove|list> [path]")
		fmt.Println("  pdfbuddy watch add <path>     Upload PDFs dropped into a directory")
		fmt.Println("  pdfbuddy watch remove <path>  Stop watching a directory")
		fmt.Println("  pdfbuddy watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "pdfbuddy serve URL")
	noSync := fs.Bool("no-sync", false, "do not upload PDFs already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	var err error
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Printf("Usage: pdfbuddy watch %s <path>\n", sub)
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if sub == "add" {
			err = watchAdd(*serverURL, path, !*noSync)
		} else {
			err = watchRemove(*serverURL, path)
		}
		if err == nil {
			fmt.Printf("%s: %s\n", map[string]string{"add": "Added", "remove": "Removed"}[sub], path)
		}
	case "list":
		var dirs []string
		dirs, err = watchList(*serverURL)
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func watchAdd(serverURL, path string, syncExisting bool) error {
	body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": syncExisting})
	resp, err := http.Post(serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("add failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

func watchRemove(serverURL, path string) error {
	req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remove failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

func watchList(serverURL string) ([]string, error) {
	resp, err := http.Get(serverURL + "/api/v1/watch/directories")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return out.Directories, nil
}

func printUsage() {
	fmt.Println(`pdfbuddy - Chat with your PDFs

Usage:
  pdfbuddy upload [flags] <file.pdf>...      Upload and index PDFs
  pdfbuddy chat [flags] [file.pdf...]        Interactive chat session
  pdfbuddy ask --file <file.pdf> <question>  Upload PDFs and ask one question
  pdfbuddy find [flags] <query>              Retrieve matching passages
  pdfbuddy preview [flags] <document-id>     Download an indexed PDF
  pdfbuddy serve [flags]                     Start the local HTTP view and directory watcher
  pdfbuddy watch <add|remove|list>           Manage watched directories of a running serve
  pdfbuddy version                           Show version
  pdfbuddy help                              Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/pdfbuddy/config.yaml)
  --api-url string   Backend base URL (default: $PDFBUDDY_API_URL, config api.base_url, or http://localhost:8080)
  --debug            Enable debug logging

Upload Flags:
  --start int        First page to index (with --end)
  --end int          Last page to index (with --start)
  --output string    Output format: text or json (default: text)

Chat Flags:
  --accept           Accept the disclaimer without prompting
  --refs             Show references after every answer
  --file string      PDF to upload first (repeatable)

Ask Flags:
  --file string      PDF to upload first (repeatable, required)
  --refs             Print references (default: true)
  --output string    Output format: text or json (default: text)

Find Flags:
  --top int          Number of passages (default: 5)
  --output string    Output format: text or json (default: text)

Preview Flags:
  --out string       Write to file instead of stdout
  --url              Print the preview URL only

Serve Flags:
  --port int         Listen port (default from config: 8090)

Watch Flags:
  --server string    Serve URL (default: http://localhost:8090)
  --no-sync          Do not upload PDFs already in the directory

Examples:
  pdfbuddy upload --start 1 --end 20 handbook.pdf
  pdfbuddy chat handbook.pdf
  pdfbuddy ask --file handbook.pdf "What is the refund policy?"
  pdfbuddy find --top 3 refund policy
  pdfbuddy preview --out copy.pdf 6f1c2e
  pdfbuddy serve
  pdfbuddy watch add ~/Documents/papers`)
}
