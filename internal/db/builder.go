package db

import (
	"strconv"
	"strings"
	"time"
)

// SelectBuilder is a fluent builder for parameterized image listing queries.
// Placeholders are numbered in the order conditions are added.
type SelectBuilder struct {
	table    string
	columns  []string
	where    []string
	args     []any
	distance string
	orderBy  string
	limit    int
}

// NewSelect starts a SELECT over table with the given columns.
func NewSelect(table string, columns ...string) *SelectBuilder {
	return &SelectBuilder{table: table, columns: columns}
}

func (b *SelectBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Where adds a raw condition. Each "?" in cond is replaced by the next placeholder.
func (b *SelectBuilder) Where(cond string, args ...any) *SelectBuilder {
	for _, a := range args {
		cond = strings.Replace(cond, "?", b.bind(a), 1)
	}
	b.where = append(b.where, cond)
	return b
}

// Eq adds column = value.
func (b *SelectBuilder) Eq(column string, v any) *SelectBuilder {
	return b.Where(column+" = ?", v)
}

// NotEq adds column <> value.
func (b *SelectBuilder) NotEq(column string, v any) *SelectBuilder {
	return b.Where(column+" <> ?", v)
}

// NotNull adds column IS NOT NULL.
func (b *SelectBuilder) NotNull(column string) *SelectBuilder {
	return b.Where(column + " IS NOT NULL")
}

// Contains adds a case-insensitive substring match on a text column.
func (b *SelectBuilder) Contains(column, substr string) *SelectBuilder {
	return b.Where(column+" ILIKE ?", LikePattern(substr))
}

// ArrayContainsAll requires, for every needle, some element of the text[] column
// to contain it case-insensitively.
func (b *SelectBuilder) ArrayContainsAll(column string, needles []string) *SelectBuilder {
	for _, n := range needles {
		b.Where("EXISTS (SELECT 1 FROM unnest("+column+") AS elem WHERE elem ILIKE ?)", LikePattern(n))
	}
	return b
}

// DateBetween restricts a timestamp column to the inclusive calendar-date range [from, to],
// with days starting at local midnight in loc (UTC when nil). Only the year, month and
// day of the bounds are used. Either bound may be nil.
func (b *SelectBuilder) DateBetween(column string, from, to *time.Time, loc *time.Location) *SelectBuilder {
	if loc == nil {
		loc = time.UTC
	}
	if from != nil {
		b.Where(column+" >= ?", startOfDay(*from, loc))
	}
	if to != nil {
		b.Where(column+" < ?", startOfDay(*to, loc).AddDate(0, 0, 1))
	}
	return b
}

// OrderByDistance selects "column <-> vec AS distance" and orders ascending by it, then by id.
func (b *SelectBuilder) OrderByDistance(column string, vec any) *SelectBuilder {
	b.distance = column + " <-> " + b.bind(vec)
	b.orderBy = "distance ASC, id ASC"
	return b
}

// OrderByNewest orders by created_at descending, then id descending.
func (b *SelectBuilder) OrderByNewest() *SelectBuilder {
	b.orderBy = "created_at DESC, id DESC"
	return b
}

// Limit caps the number of rows. Zero means no limit.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

// Build returns the SQL text and its positional arguments.
func (b *SelectBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	if b.distance != "" {
		sb.WriteString(", ")
		sb.WriteString(b.distance)
		sb.WriteString(" AS distance")
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	return sb.String(), b.args
}

// String returns the SQL text.
func (b *SelectBuilder) String() string {
	q, _ := b.Build()
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps s in % wildcards, escaping LIKE metacharacters.
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func startOfDay(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
