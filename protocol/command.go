// Package protocol implements the line-oriented wire protocol: command
// parsing, the JSON response envelope, and newline frame buffering.
//
// Commands are single text lines terminated by '\n'. Responses are one JSON
// object followed by the terminator "\r\n\r\n". The upload handshake ack is
// the lone exception: plain text with no terminator (see ReadyBanner).
package protocol

import (
	"errors"
	"strings"
)

// Protocol verbs. Matched exactly, case-sensitive.
const (
	VerbList   = "LIST"
	VerbGet    = "GET"
	VerbDelete = "DELETE"
	VerbUpload = "UPLOAD"
)

// EndUpload is the sentinel frame that closes an upload.
const EndUpload = "ENDUPLOAD"

// ReadyBanner is the plain-text upload handshake ack. Unlike every other
// response it is sent without JSON and without ResponseTerminator. The
// asymmetry is preserved for wire compatibility with existing clients,
// which match on the "READY" substring.
const ReadyBanner = "READY TO RECEIVE FILE"

// ResponseTerminator marks the end of a JSON response envelope. The JSON
// payload may contain embedded text, so the peer relies on this sequence
// rather than a newline to detect completion.
const ResponseTerminator = "\r\n\r\n"

// ErrEmptyCommand is returned for a frame that is empty after trimming.
var ErrEmptyCommand = errors.New("empty command")

// Command is a parsed command frame: a verb and its positional arguments.
type Command struct {
	Verb string
	Args []string
}

// Arg returns the i-th positional argument, or "" if absent.
func (c Command) Arg(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ParseCommand splits a frame into a verb and positional arguments on
// whitespace. The frame is trimmed first; an empty result is an error.
// Unknown verbs parse successfully — rejecting them is the dispatcher's
// job, so the connection survives a typo.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Verb: fields[0], Args: fields[1:]}, nil
}
