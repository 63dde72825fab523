package catalog

import "strings"

// TitleOp is a title filter operator as spelled in PostgREST query strings.
type TitleOp string

const (
	TitleAny   TitleOp = ""
	TitleEq    TitleOp = "eq"
	TitleLike  TitleOp = "like"
	TitleILike TitleOp = "ilike"
)

// Query filters a catalog listing. Title patterns for like/ilike use '*' or
// '%' for any run of characters and '_' for a single character.
type Query struct {
	ID      int64 // 0 means any
	TitleOp TitleOp
	Title   string
	Desc    bool
	Limit   int // 0 means no limit
	Offset  int
}

// globFromPattern rewrites a like pattern into an SQLite GLOB pattern,
// escaping GLOB's own metacharacters.
func globFromPattern(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, r := range p {
		switch r {
		case '*', '%':
			b.WriteByte('*')
		case '_':
			b.WriteByte('?')
		case '?':
			b.WriteString("[?]")
		case '[':
			b.WriteString("[[]")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// globLiteral escapes s so GLOB matches it verbatim.
func globLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// likeLiteral escapes s for a LIKE/ILIKE pattern using '\' as escape.
func likeLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
