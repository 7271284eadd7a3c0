package bridge

import (
	"errors"
	"fmt"

	"github.com/kballard/go-shellquote"
)

// ErrUnterminatedQuote indicates a command line with an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Split breaks a command line into words using POSIX shell quoting.
// An empty line yields no words.
func Split(line string) ([]string, error) {
	words, err := shellquote.Split(line)
	switch {
	case errors.Is(err, shellquote.UnterminatedSingleQuoteError),
		errors.Is(err, shellquote.UnterminatedDoubleQuoteError),
		errors.Is(err, shellquote.UnterminatedEscapeError):
		return nil, fmt.Errorf("%w: %s", ErrUnterminatedQuote, line)
	case err != nil:
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}
	return words, nil
}
