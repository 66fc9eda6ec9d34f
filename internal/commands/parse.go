package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"linkrelay/internal/services"
)

// Kind names an operator command.
type Kind string

const (
	KindStart   Kind = "start"
	KindHelp    Kind = "help"
	KindStatus  Kind = "status"
	KindRemain  Kind = "remain"
	KindPause   Kind = "pause"
	KindResume  Kind = "resume"
	KindClear   Kind = "clear"
	KindSkip    Kind = "skip"
	KindCaption Kind = "caption"
)

// Command is a parsed operator command.
type Command struct {
	Kind  Kind
	Count int
	Text  string
}

const (
	skipUsage    = "Usage: /skip N (N is the number of queued links to discard)"
	captionUsage = "Usage: /cap N <caption>\nExample: /cap 5 Check out this video!\nThis adds the caption to the next 5 videos."
)

var aliases = map[string]Kind{
	"start":    KindStart,
	"help":     KindHelp,
	"status":   KindStatus,
	"remain":   KindRemain,
	"stopnow":  KindPause,
	"pause":    KindPause,
	"startnow": KindResume,
	"resume":   KindResume,
	"clean":    KindClear,
	"clear":    KindClear,
	"skip":     KindSkip,
	"cap":      KindCaption,
}

var fold = cases.Fold()

// IsCommand reports whether text is addressed to the command grammar.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// Parse decodes a slash command. The command word is case-insensitive and
// may carry an @botname suffix. Invalid arguments yield ErrInvalidInput with
// the usage line in the message.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, usageError("Commands start with /. Send /help for the list.")
	}
	word, rest := splitWord(text[1:])
	word, _, _ = strings.Cut(word, "@")
	name := fold.String(strings.TrimSpace(word))
	kind, ok := aliases[name]
	if !ok {
		return Command{}, usageError(fmt.Sprintf("Unknown command /%s. Send /help for the list.", name))
	}
	rest = strings.TrimSpace(rest)

	cmd := Command{Kind: kind}
	switch kind {
	case KindSkip:
		fields := strings.Fields(rest)
		if len(fields) != 1 {
			return Command{}, usageError(skipUsage)
		}
		n, err := positive(fields[0])
		if err != nil {
			return Command{}, usageError(skipUsage)
		}
		cmd.Count = n
	case KindCaption:
		countText, caption := splitWord(rest)
		n, err := positive(countText)
		if err != nil {
			return Command{}, usageError(captionUsage)
		}
		caption = strings.TrimSpace(caption)
		if caption == "" {
			return Command{}, usageError(captionUsage)
		}
		cmd.Count = n
		cmd.Text = caption
	}
	return cmd, nil
}

// splitWord returns the first whitespace-delimited word and the remainder.
func splitWord(s string) (string, string) {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func positive(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

// UsageError is an operator mistake answered with a usage hint.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return e.Usage
}

// Is lets errors.Is(err, services.ErrInvalidInput) match.
func (e *UsageError) Is(target error) bool {
	return target == services.ErrInvalidInput
}

func usageError(usage string) error {
	return &UsageError{Usage: usage}
}
