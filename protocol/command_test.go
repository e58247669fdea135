package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			name: "list without args",
			line: "LIST",
			want: Command{Verb: "LIST", Args: []string{}},
		},
		{
			name: "get with filename",
			line: "GET report.pdf",
			want: Command{Verb: "GET", Args: []string{"report.pdf"}},
		},
		{
			name: "delete with filename",
			line: "DELETE a1b2.png",
			want: Command{Verb: "DELETE", Args: []string{"a1b2.png"}},
		},
		{
			name: "surrounding whitespace trimmed",
			line: "  GET report.pdf \r",
			want: Command{Verb: "GET", Args: []string{"report.pdf"}},
		},
		{
			name: "runs of whitespace collapse",
			line: "GET \t report.pdf",
			want: Command{Verb: "GET", Args: []string{"report.pdf"}},
		},
		{
			name: "unknown verb still parses",
			line: "FETCH report.pdf",
			want: Command{Verb: "FETCH", Args: []string{"report.pdf"}},
		},
		{
			name: "verb is case-sensitive",
			line: "list",
			want: Command{Verb: "list", Args: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if err != nil {
				t.Fatalf("ParseCommand(%q) failed: %v", tt.line, err)
			}
			if got.Verb != tt.want.Verb {
				t.Errorf("Verb = %q, want %q", got.Verb, tt.want.Verb)
			}
			if len(got.Args) != len(tt.want.Args) || !reflect.DeepEqual(append([]string{}, got.Args...), tt.want.Args) {
				t.Errorf("Args = %v, want %v", got.Args, tt.want.Args)
			}
		})
	}
}

func TestParseCommand_Empty(t *testing.T) {
	for _, line := range []string{"", "   ", "\r", "\t  \r"} {
		if _, err := ParseCommand(line); !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("ParseCommand(%q) = %v, want ErrEmptyCommand", line, err)
		}
	}
}

func TestCommandArg(t *testing.T) {
	cmd := Command{Verb: "GET", Args: []string{"report.pdf"}}
	if got := cmd.Arg(0); got != "report.pdf" {
		t.Errorf("Arg(0) = %q, want %q", got, "report.pdf")
	}
	if got := cmd.Arg(1); got != "" {
		t.Errorf("Arg(1) = %q, want empty", got)
	}
}
