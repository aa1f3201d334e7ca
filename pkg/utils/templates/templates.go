// Package templates normalizes help text for mosaic commands.
package templates

import (
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/mitchellh/go-wordwrap"
	"github.com/moby/term"
	"github.com/spf13/cobra"
)

const (
	defaultWidth = 80
	indentation  = `  `
)

// LongDesc normalizes a command's long description: the text is dedented,
// trimmed and wrapped to the terminal width.
func LongDesc(s string) string {
	if len(s) == 0 {
		return s
	}
	return Wrap(strings.TrimSpace(heredoc.Doc(s)), TerminalWidth())
}

// Examples normalizes a command's examples to follow the conventions.
func Examples(s string) string {
	if len(s) == 0 {
		return s
	}
	trimmed := strings.TrimSpace(heredoc.Doc(s))
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = indentation + strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// Wrap wraps every paragraph of s to width columns.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.WrapString(s, uint(width))
}

// TerminalWidth returns the width of stdout, or 80 when stdout is not a terminal.
func TerminalWidth() int {
	fd, isTerm := term.GetFdInfo(os.Stdout)
	if !isTerm {
		return defaultWidth
	}
	ws, err := term.GetWinsize(fd)
	if err != nil || ws.Width == 0 {
		return defaultWidth
	}
	return int(ws.Width)
}

// CommandGroup is a titled set of subcommands shown together in help output.
type CommandGroup struct {
	ID       string
	Message  string
	Commands []*cobra.Command
}

// CommandGroups is an ordered list of CommandGroup.
type CommandGroups []CommandGroup

// Add registers every group on c and attaches the group's commands.
func (g CommandGroups) Add(c *cobra.Command) {
	for _, group := range g {
		if !c.ContainsGroup(group.ID) {
			c.AddGroup(&cobra.Group{ID: group.ID, Title: group.Message})
		}
		for _, command := range group.Commands {
			command.GroupID = group.ID
			c.AddCommand(command)
		}
	}
}
