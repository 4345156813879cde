package dao

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pharmaai/pharmadb/pkg/types"
)

// Statement assembly for the generic layer. Column names are never
// taken from the caller verbatim: every identifier must appear in the
// table's allowlist fixed at Store construction, so the assembled SQL
// contains only compile-time-known identifiers plus $n placeholders.

// checkColumns verifies every name is allowlisted.
func (s *Store) checkColumns(names []string) error {
	for _, n := range names {
		if _, ok := s.cols[n]; !ok {
			return fmt.Errorf("%w: %q in table %s", types.ErrUnknownColumn, n, s.table)
		}
	}
	return nil
}

// sortedKeys returns the record's column names in deterministic order.
func sortedKeys(rec types.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildInsert assembles a single-row INSERT ... RETURNING <id>.
func (s *Store) buildInsert(rec types.Record) (string, []any, error) {
	if len(rec) == 0 {
		return "", nil, fmt.Errorf("%w: insert into %s", types.ErrEmptyRecord, s.table)
	}
	cols := sortedKeys(rec)
	if err := s.checkColumns(cols); err != nil {
		return "", nil, err
	}
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), s.idCol)
	return query, args, nil
}

// buildBatchInsert assembles a multi-row INSERT for one chunk. All
// records contribute values for the column set of the first record;
// absent keys insert NULL. The optional conflict fragment is appended
// verbatim after ON CONFLICT and is the caller's responsibility.
func (s *Store) buildBatchInsert(cols []string, chunk []types.Record, onConflict string) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", s.table, strings.Join(cols, ", "))
	args := make([]any, 0, len(chunk)*len(cols))
	n := 1
	for i, rec := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, c := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
			args = append(args, rec[c])
		}
		sb.WriteString(")")
	}
	if onConflict != "" {
		sb.WriteString(" ON CONFLICT ")
		sb.WriteString(onConflict)
	}
	return sb.String(), args
}

// buildSelect assembles SELECT * with optional AND-equality criteria,
// ordering, and pagination.
func (s *Store) buildSelect(criteria types.Record, opts types.ListOptions) (string, []any, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", s.table)
	var args []any

	if len(criteria) > 0 {
		cols := sortedKeys(criteria)
		if err := s.checkColumns(cols); err != nil {
			return "", nil, err
		}
		conds := make([]string, len(cols))
		for i, c := range cols {
			conds[i] = fmt.Sprintf("%s = $%d", c, i+1)
			args = append(args, criteria[c])
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if opts.OrderBy != "" {
		clause, err := s.parseOrderBy(opts.OrderBy)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(clause)
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args, nil
}

// buildUpdate assembles UPDATE ... SET ... WHERE <id> = $n.
func (s *Store) buildUpdate(id any, fields types.Record) (string, []any, error) {
	cols := sortedKeys(fields)
	if err := s.checkColumns(cols); err != nil {
		return "", nil, err
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args = append(args, fields[c])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		s.table, strings.Join(sets, ", "), s.idCol, len(args))
	return query, args, nil
}

// parseOrderBy reduces an order-by expression to an allowlisted column
// plus an optional ASC/DESC direction.
func (s *Store) parseOrderBy(expr string) (string, error) {
	parts := strings.Fields(expr)
	switch len(parts) {
	case 1:
		if err := s.checkColumns(parts[:1]); err != nil {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidOrderBy, expr)
		}
		return parts[0], nil
	case 2:
		dir := strings.ToUpper(parts[1])
		if dir != "ASC" && dir != "DESC" {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidOrderBy, expr)
		}
		if err := s.checkColumns(parts[:1]); err != nil {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidOrderBy, expr)
		}
		return parts[0] + " " + dir, nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrInvalidOrderBy, expr)
	}
}

// isReadStatement reports whether a statement returns rows rather than
// an affected-row count.
func isReadStatement(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}
