package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/pdfbuddy/internal/chat"
	"github.com/hyperjump/pdfbuddy/internal/cli"
	"github.com/hyperjump/pdfbuddy/internal/notify"
)

const replHelp = `Commands:
  /upload <file.pdf> [start end]  Upload and index a PDF (optionally a page range)
  /files                          List uploaded files
  /refs                           Show references for the latest answer
  /hide                           Hide references
  /help                           Show this help
  /quit                           Leave the session
Anything else is sent as a question.`

// repl is an interactive chat session over one app.
type repl struct {
	app *app
	in  *bufio.Reader
	out io.Writer
}

// run reads lines until EOF, /quit, or ctx is cancelled.
func (r *repl) run(ctx context.Context) {
	fmt.Fprintln(r.out, "Type /help for commands.")
	for ctx.Err() == nil {
		fmt.Fprint(r.out, "you> ")
		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(r.out)
			return
		}
		if quit := r.handle(ctx, line); quit {
			return
		}
	}
}

// handle processes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		r.reject(r.app.chat.Check(line))
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.ask(ctx, line)
		return false
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/files":
		docs := r.app.tracker.Documents()
		if len(docs) == 0 {
			fmt.Fprintln(r.out, "No files uploaded")
			return false
		}
		_ = cli.WriteDocuments(r.out, docs, cli.OutputText)
	case "/refs":
		r.app.chat.ShowReferences()
		_ = cli.WriteReferences(r.out, r.app.chat.VisibleReferences(), cli.OutputText)
	case "/hide":
		r.app.chat.HideReferences()
		fmt.Fprintln(r.out, "References hidden")
	case "/upload":
		r.upload(ctx, fields[1:])
	default:
		fmt.Fprintf(r.out, "Unknown command %s (try /help)\n", fields[0])
	}
	return false
}

// reject writes a send rejection inline.
func (r *repl) reject(err error) {
	var ve *chat.ValidationError
	if errors.As(err, &ve) {
		cli.WriteNotification(r.out, notify.Error(ve.Title, ve.Detail))
	}
}

func (r *repl) ask(ctx context.Context, text string) {
	// Rejections and failures are reported by the controller's notifier.
	ex, err := sendQuestion(ctx, r.app.chat, text)
	if err != nil {
		return
	}
	_ = cli.WriteExchange(r.out, ex, r.app.chat.ReferencesVisible(), cli.OutputText)
}

func (r *repl) upload(ctx context.Context, args []string) {
	if len(args) != 1 && len(args) != 3 {
		fmt.Fprintln(r.out, "Usage: /upload <file.pdf> [start end]")
		return
	}
	start, end := 0, 0
	if len(args) == 3 {
		var err1, err2 error
		start, err1 = strconv.Atoi(args[1])
		end, err2 = strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			fmt.Fprintln(r.out, "Page numbers must be integers")
			return
		}
	}
	_, _ = uploadFile(ctx, r.out, r.app.tracker, args[0], pageRange(start, end))
}
