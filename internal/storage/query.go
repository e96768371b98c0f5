package storage

import (
	"fmt"
	"strings"
	"time"

	"confd/internal/types"
)

// AuditQuery represents a filter over the audit log. Zero fields are
// ignored.
type AuditQuery struct {
	StartDate time.Time         `json:"start_date,omitempty"`
	EndDate   time.Time         `json:"end_date,omitempty"`
	Action    types.AuditAction `json:"action,omitempty"`
	Key       string            `json:"key,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// QueryBuilder assembles SQL incrementally. Placeholders stay in `?` form;
// driver specific rebinding happens at execution time.
type QueryBuilder struct {
	sql  strings.Builder
	args []any
}

// Reset clears the builder
func (qb *QueryBuilder) Reset() {
	qb.sql.Reset()
	qb.args = qb.args[:0]
}

// SQL returns the built query string
func (qb *QueryBuilder) SQL() string {
	return qb.sql.String()
}

// Args returns query arguments
func (qb *QueryBuilder) Args() []any {
	return qb.args
}

// Select starts a SELECT query
func (qb *QueryBuilder) Select(cols ...string) *QueryBuilder {
	qb.sql.WriteString("SELECT ")
	qb.sql.WriteString(strings.Join(cols, ", "))
	return qb
}

// From adds FROM clause
func (qb *QueryBuilder) From(table string) *QueryBuilder {
	qb.sql.WriteString(" FROM ")
	qb.sql.WriteString(table)
	return qb
}

// Where adds a WHERE or AND condition
func (qb *QueryBuilder) Where(cond string, args ...any) *QueryBuilder {
	if strings.Contains(qb.sql.String(), "WHERE") {
		qb.sql.WriteString(" AND ")
	} else {
		qb.sql.WriteString(" WHERE ")
	}
	qb.sql.WriteString(cond)
	qb.args = append(qb.args, args...)
	return qb
}

// OrderBy adds ORDER BY
func (qb *QueryBuilder) OrderBy(col, order string) *QueryBuilder {
	qb.sql.WriteString(" ORDER BY ")
	qb.sql.WriteString(col)
	if order != "" {
		qb.sql.WriteString(" " + order)
	}
	return qb
}

// GroupBy adds GROUP BY
func (qb *QueryBuilder) GroupBy(cols ...string) *QueryBuilder {
	qb.sql.WriteString(" GROUP BY ")
	qb.sql.WriteString(strings.Join(cols, ", "))
	return qb
}

// Limit adds LIMIT
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.sql.WriteString(fmt.Sprintf(" LIMIT %d", n))
	return qb
}

// Offset adds OFFSET
func (qb *QueryBuilder) Offset(n int) *QueryBuilder {
	qb.sql.WriteString(fmt.Sprintf(" OFFSET %d", n))
	return qb
}
