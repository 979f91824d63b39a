package listfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Read returns the trimmed, non-empty, non-comment lines of the file at
// path, in file order. A line is a comment when its first non-whitespace
// character is '#'. A missing file yields an empty slice and no error, so
// optional lists can simply be absent. Duplicates are preserved.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open list %s: %w", path, err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	return entries, nil
}
