package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options control how destructive actions are confirmed.
type Options struct {
	// Yes answers every prompt affirmatively, for non-interactive use.
	Yes bool
}

// Confirm asks the user to confirm a destructive action. With opts.Yes it
// returns true without prompting. The caller decides what a declined
// confirmation means; Confirm itself mutates nothing.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}
