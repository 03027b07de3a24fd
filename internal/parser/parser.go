// Package parser turns a line of shell input into an argument vector.
package parser

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidJobID = errors.New("invalid job id")

// Command is a tokenized line of input.
type Command struct {
	Args       []string
	Background bool
}

// Name returns the command name, i.e. the first argument.
func (c Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}

	return c.Args[0]
}

// Parse splits line on blanks. A trailing `&`, either as its own token or
// stuck to the end of the last token, is removed and marks the command as
// background. ok is false when nothing is left to run.
func Parse(line string) (Command, bool) {
	args := strings.FieldsFunc(line, isBlank)
	if len(args) == 0 {
		return Command{}, false
	}

	var background bool

	last := args[len(args)-1]

	switch {
	case last == "&":
		args = args[:len(args)-1]
		background = true

	case strings.HasSuffix(last, "&"):
		args[len(args)-1] = strings.TrimSuffix(last, "&")
		background = true
	}

	if len(args) == 0 {
		return Command{}, false
	}

	return Command{Args: args, Background: background}, true
}

// ParseJobID parses a job reference of the form %N, where N is a positive
// decimal number.
func ParseJobID(s string) (int, error) {
	digits, ok := strings.CutPrefix(s, "%")
	if !ok || digits == "" {
		return 0, ErrInvalidJobID
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, ErrInvalidJobID
		}
	}

	id, err := strconv.Atoi(digits)
	if err != nil || id < 1 {
		return 0, ErrInvalidJobID
	}

	return id, nil
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}
