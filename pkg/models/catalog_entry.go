package models

// CatalogEntry is a book as stored in a catalog backend. ID is assigned by
// the backend (SQLite rowid, Postgres serial).
type CatalogEntry struct {
	ID     int64  `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Bundle string `json:"bundle" yaml:"bundle"`
}

