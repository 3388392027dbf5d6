package table

import (
	"fmt"
	"math"
	"strings"

	"github.com/Masterminds/squirrel"
)

// query holds the refinements shared by Selection and GroupedSelection.
type query struct {
	columns   []string
	where     []squirrel.Sqlizer
	primaries []any
	order     []string
	limit     uint64
	offset    uint64
	hasLimit  bool
	hasOffset bool
}

func (q *query) clone() query {
	c := *q
	c.columns = append([]string(nil), q.columns...)
	c.where = append([]squirrel.Sqlizer(nil), q.where...)
	c.primaries = append([]any(nil), q.primaries...)
	c.order = append([]string(nil), q.order...)
	return c
}

func (q *query) selectColumns() []string {
	if len(q.columns) == 0 {
		return []string{"*"}
	}
	return q.columns
}

// conditions returns the WHERE parts, turning primary filters into
// comparisons on the primary column.
func (q *query) conditions(table, primary string) ([]squirrel.Sqlizer, error) {
	conds := append([]squirrel.Sqlizer(nil), q.where...)
	if len(q.primaries) == 0 {
		return conds, nil
	}
	if primary == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidState,
			Message: "table has no primary key",
			Table:   table,
		}
	}
	for _, v := range q.primaries {
		conds = append(conds, squirrel.Eq{primary: v})
	}
	return conds, nil
}

// applySelect adds conditions, ordering and paging to a select builder.
// Without an explicit order rows come back in primary key order.
func (q *query) applySelect(sb squirrel.SelectBuilder, conds []squirrel.Sqlizer, primary string) squirrel.SelectBuilder {
	for _, c := range conds {
		sb = sb.Where(c)
	}
	switch {
	case len(q.order) > 0:
		sb = sb.OrderBy(q.order...)
	case primary != "":
		sb = sb.OrderBy(primary + " ASC")
	}
	switch {
	case q.hasLimit:
		sb = sb.Limit(q.limit)
	case q.hasOffset:
		// SQLite rejects OFFSET without LIMIT
		sb = sb.Limit(math.MaxInt64)
	}
	if q.hasOffset {
		sb = sb.Offset(q.offset)
	}
	return sb
}

// condition turns the arguments of Where into a SQL condition.
//
// Accepted forms:
//
//	Where(map[string]any{"author_id": 1, "year": []int{1920, 1924}})
//	Where("author_id", 1)            // bare column with one value
//	Where("year > ? AND year < ?", 1900, 1950)
//	Where(squirrel.Or{...})
//
// In maps and bare-column form, nil compares with IS NULL and slices with IN.
func condition(cond any, args []any) (squirrel.Sqlizer, error) {
	switch c := cond.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(c) == 0 {
			return nil, nil
		}
		return squirrel.Eq(c), nil
	case squirrel.Sqlizer:
		return c, nil
	case string:
		if c == "" {
			return nil, &Error{Code: ErrCodeInvalidArgument, Message: "empty condition"}
		}
		if len(args) == 1 && isColumnName(c) {
			return squirrel.Eq{c: args[0]}, nil
		}
		if n := strings.Count(c, "?"); n != len(args) {
			return nil, &Error{
				Code:    ErrCodeInvalidArgument,
				Message: fmt.Sprintf("condition %q has %d placeholders but %d arguments", c, n, len(args)),
				Key:     c,
			}
		}
		return squirrel.Expr(c, args...), nil
	default:
		return nil, &Error{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("unsupported condition type %T", cond),
		}
	}
}

// isColumnName reports whether s looks like a (possibly qualified) column.
func isColumnName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// signature identifies a refined query for grouping caches.
func (q *query) signature() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "cols=%s;", strings.Join(q.columns, ","))
	if len(q.where) > 0 {
		sql, args, err := squirrel.And(q.where).ToSql()
		if err != nil {
			return "", fmt.Errorf("build condition: %w", err)
		}
		fmt.Fprintf(&b, "where=%s%v;", sql, args)
	}
	fmt.Fprintf(&b, "order=%s", strings.Join(q.order, ","))
	return b.String(), nil
}
