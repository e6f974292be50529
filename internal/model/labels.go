package model

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// LabelSet holds class labels in output-index order.
type LabelSet []string

// LoadLabels reads one label per line. Trailing whitespace is stripped and
// trailing blank lines are dropped; a blank line in the middle is an error
// because it would shift every following class index.
func LoadLabels(path string) (LabelSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var labels LabelSet
	blank := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if line == "" {
			blank++
			continue
		}
		if blank > 0 {
			return nil, fmt.Errorf("labels line %d: blank line before it", len(labels)+blank+1)
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, errors.New("labels file is empty")
	}
	return labels, nil
}
