package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Disclaimer is shown at the start of every interactive session. Acceptance is never stored.
var Disclaimer = Notice{
	Title: "Disclaimer",
	Paragraphs: []string{
		"This AI assistant is designed to help you interact with documents but may occasionally provide inaccurate information.",
		"The information provided through this tool is for general informational purposes only and should not be relied upon for critical decisions.",
		"By accepting below, you acknowledge that:",
	},
	Points: []string{
		"You understand the limitations of AI technology",
		"You will verify important information from official sources",
		"You assume responsibility for decisions made based on information provided by this tool",
	},
}

// Notice is a block of text the user must acknowledge.
type Notice struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
	Points     []string `json:"points"`
}

// WriteNotice prints n.
func WriteNotice(w io.Writer, n Notice) {
	fmt.Fprintf(w, "%s\n%s\n", n.Title, rule)
	for _, p := range n.Paragraphs {
		fmt.Fprintf(w, "%s\n\n", p)
	}
	for _, p := range n.Points {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	fmt.Fprintln(w)
}

// Accept prints n and asks for acceptance on r. It returns false on anything but yes or on EOF.
func Accept(w io.Writer, r *bufio.Reader, n Notice) bool {
	WriteNotice(w, n)
	fmt.Fprint(w, "I accept [y/N]: ")
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
