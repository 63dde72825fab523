// Package bundle reads the plain-text bundle exports produced by storefront
// "download list" pages:
//
//	My Humble Bundle "Tier 2: Science Fiction Classics" (5 items)
//	-------------------------------------------------------------
//	- Dune, 2nd Edition
//	- Foundation
//
// The first line names the bundle, the second is a decorative separator and
// every following line is one book.
package bundle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"bundlelib/pkg/models"
)

var (
	// ErrMalformed is wrapped by every error caused by the shape of the input
	// rather than by I/O.
	ErrMalformed = errors.New("malformed bundle export")

	ErrMalformedHeader = fmt.Errorf("%w: unrecognised header", ErrMalformed)
	ErrEmptyEntry      = fmt.Errorf("%w: empty entry", ErrMalformed)
)

// headerRe captures the bundle name after the last ": " inside the quotes and
// the declared item count.
var headerRe = regexp.MustCompile(`^[\p{L}\p{M}\p{N}_ ]+".+:\s+(.+)"\s+\((\d+)\s+items\)$`)

// entryCutset is trimmed from both ends of every entry line.
const entryCutset = "- \r\n"

const maxLineSize = 1 << 20

// ParseError reports where in the input parsing stopped.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Export is a fully parsed bundle file.
type Export struct {
	Bundle string
	// Declared is the item count printed in the header. It is informational
	// and is not checked against len(Books).
	Declared int
	Books    []models.Book
}

// ParseHeader extracts the bundle name and declared item count from the
// first line of an export.
func ParseHeader(line string) (string, int, error) {
	m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", 0, ErrMalformedHeader
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("%w: item count %q", ErrMalformedHeader, m[2])
	}
	return m[1], n, nil
}

// Read parses a whole export. Any empty entry line fails the entire read; no
// partial result is returned alongside an error. A header with no entries
// yields an Export with zero books.
func Read(r io.Reader) (*Export, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, &ParseError{Line: 1, Err: ErrMalformedHeader}
	}

	name, declared, err := ParseHeader(sc.Text())
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	exp := &Export{Bundle: name, Declared: declared, Books: []models.Book{}}

	// separator line
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read separator: %w", err)
		}
		return exp, nil
	}

	lineNo := 2
	for sc.Scan() {
		lineNo++
		title := strings.Trim(sc.Text(), entryCutset)
		if title == "" {
			return nil, &ParseError{Line: lineNo, Err: ErrEmptyEntry}
		}
		exp.Books = append(exp.Books, models.Book{Title: title, Bundle: name})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
	}

	return exp, nil
}

// Parse returns the books of an export in file order.
func Parse(r io.Reader) ([]models.Book, error) {
	exp, err := Read(r)
	if err != nil {
		return nil, err
	}
	return exp.Books, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	exp, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return exp, nil
}

// ParseFile is ReadFile returning only the books.
func ParseFile(path string) ([]models.Book, error) {
	exp, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return exp.Books, nil
}
