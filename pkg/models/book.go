package models

import "strings"

// EditionSeparator splits a title into its base name and an edition or
// variant suffix, e.g. "Dune, 2nd Edition".
const EditionSeparator = ", "

// Book is a single entry parsed out of a bundle export. It is a plain value:
// two books are the same book when both fields are equal.
type Book struct {
	Title  string `json:"title"`
	Bundle string `json:"bundle"`
}

func (b Book) String() string {
	return b.Title + " (" + b.Bundle + ")"
}

// BaseName is the title with any edition suffix removed.
func (b Book) BaseName() string {
	return BaseName(b.Title)
}

// BaseName truncates title at the first EditionSeparator. Titles without a
// separator are returned unchanged.
func BaseName(title string) string {
	if i := strings.Index(title, EditionSeparator); i >= 0 {
		return title[:i]
	}
	return title
}
