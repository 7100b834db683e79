package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Charset maps CTC class indices to tokens. Class 0 is the blank, so token
// i corresponds to class i+1.
type Charset struct {
	Tokens       []string
	TokenToIndex map[string]int
}

// NewCharset builds a charset from tokens; the first occurrence of a
// duplicate wins the reverse lookup.
func NewCharset(tokens []string) (*Charset, error) {
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	toIdx := make(map[string]int, len(tokens))
	for i, t := range tokens {
		if _, ok := toIdx[t]; !ok {
			toIdx[t] = i
		}
	}
	return &Charset{Tokens: tokens, TokenToIndex: toIdx}, nil
}

// LoadCharset loads a dictionary file where each non-empty line is a token.
// Lines are trimmed and a leading UTF-8 BOM is removed.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Error closing dictionary file", "path", path, "error", err)
		}
	}()

	scanner := bufio.NewScanner(f)
	tokens := make([]string, 0, 128)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line = strings.TrimSpace(line); line != "" {
			tokens = append(tokens, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	cs, err := NewCharset(tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return cs, nil
}

// Size returns the number of tokens, excluding the blank.
func (c *Charset) Size() int { return len(c.Tokens) }

// Classes is the expected width of the model's class dimension.
func (c *Charset) Classes() int { return len(c.Tokens) + 1 }

// LookupIndex returns the token index of a token, or -1.
func (c *Charset) LookupIndex(token string) int {
	if c == nil {
		return -1
	}
	if idx, ok := c.TokenToIndex[token]; ok {
		return idx
	}
	return -1
}

// LookupToken returns the token for a token index, or "" when out of range.
func (c *Charset) LookupToken(index int) string {
	if c == nil || index < 0 || index >= len(c.Tokens) {
		return ""
	}
	return c.Tokens[index]
}

// Decode maps collapsed CTC class indices to text, skipping the blank and
// unknown classes.
func (c *Charset) Decode(classes []int) string {
	var b strings.Builder
	for _, cls := range classes {
		b.WriteString(c.LookupToken(cls - 1))
	}
	return b.String()
}
