package sql

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"
	"github.com/juju/errors"
)

// Pseudo-columns addressing the row key and the cell timestamp.
const (
	RowKeyColumn    = "rowkey"
	TimestampColumn = "ts"
)

// ParseToPlan parses a SQL string and returns a logical plan.
func ParseToPlan(sql string) (PlanNode, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, errors.NewNotValid(err, "parse")
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		return buildSelectPlan(s)
	case *sqlparser.Insert:
		return buildInsertPlan(s)
	case *sqlparser.Delete:
		return buildDeletePlan(s)
	default:
		return nil, errors.NotValidf("statement type %T", stmt)
	}
}

// predicate collects the row and timestamp bounds of a WHERE clause.
type predicate struct {
	keys    [][]byte
	hasKeys bool

	start, stop []byte
	prefix      []byte

	// tsBefore is exclusive, tsUpTo inclusive.
	tsBefore    int64
	hasTsBefore bool
	tsUpTo      int64
	hasTsUpTo   bool
}

func (p *predicate) hasRange() bool {
	return p.start != nil || p.stop != nil
}

func tableOf(exprs sqlparser.TableExprs) (string, error) {
	if len(exprs) != 1 {
		return "", errors.NotValidf("%d tables in FROM", len(exprs))
	}
	aliased, ok := exprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", errors.NotValidf("complex FROM clause")
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", errors.NotValidf("FROM %s", sqlparser.String(aliased.Expr))
	}
	return name.Name.String(), nil
}

func buildSelectPlan(stmt *sqlparser.Select) (PlanNode, error) {
	if len(stmt.From) == 0 {
		return nil, errors.NotValidf("SELECT without FROM")
	}
	table, err := tableOf(stmt.From)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var p predicate
	if stmt.Where != nil {
		if err := p.add(stmt.Where.Expr); err != nil {
			return nil, errors.Trace(err)
		}
	}
	// ts <= MaxInt64 admits every version
	if p.hasTsUpTo && p.tsUpTo < math.MaxInt64 {
		p.tsBefore, p.hasTsBefore = p.tsUpTo+1, true
	}

	reverse, err := orderOf(stmt.OrderBy)
	if err != nil {
		return nil, errors.Trace(err)
	}
	limit, err := limitOf(stmt.Limit)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var node PlanNode
	switch {
	case p.hasKeys:
		if p.hasRange() || p.prefix != nil {
			return nil, errors.NotValidf("row key list combined with a range")
		}
		node = &GetNode{
			Table:     table,
			Keys:      p.keys,
			Before:    p.tsBefore,
			HasBefore: p.hasTsBefore,
			Reverse:   reverse,
			Limit:     limit,
		}
	default:
		if p.prefix != nil && p.hasRange() {
			return nil, errors.NotValidf("LIKE combined with a row key range")
		}
		node = &ScanNode{
			Table:     table,
			Start:     p.start,
			Stop:      p.stop,
			Prefix:    p.prefix,
			Before:    p.tsBefore,
			HasBefore: p.hasTsBefore,
			Reverse:   reverse,
			Limit:     limit,
		}
	}

	var cols []string
	keyOnly := false
	for _, expr := range stmt.SelectExprs {
		switch e := expr.(type) {
		case *sqlparser.StarExpr:
			return &ProjectNode{Input: node}, nil
		case *sqlparser.AliasedExpr:
			col, ok := e.Expr.(*sqlparser.ColName)
			if !ok {
				return nil, errors.NotValidf("select expression %s", sqlparser.String(e.Expr))
			}
			name := col.Name.String()
			if strings.ToLower(name) == RowKeyColumn {
				keyOnly = true
				continue
			}
			cols = append(cols, name)
		default:
			return nil, errors.NotValidf("select expression %s", sqlparser.String(expr))
		}
	}

	if len(cols) > 0 {
		keyOnly = false
	}
	return &ProjectNode{Input: node, Columns: cols, KeyOnly: keyOnly}, nil
}

func orderOf(orderBy sqlparser.OrderBy) (reverse bool, err error) {
	switch len(orderBy) {
	case 0:
		return false, nil
	case 1:
	default:
		return false, errors.NotValidf("ORDER BY on more than one column")
	}
	col, ok := orderBy[0].Expr.(*sqlparser.ColName)
	if !ok || col.Name.Lowered() != RowKeyColumn {
		return false, errors.NotValidf("ORDER BY %s", sqlparser.String(orderBy[0].Expr))
	}
	return orderBy[0].Direction == sqlparser.DescScr, nil
}

func limitOf(limit *sqlparser.Limit) (int, error) {
	if limit == nil {
		return 0, nil
	}
	if limit.Offset != nil {
		return 0, errors.NotValidf("LIMIT with offset")
	}
	n, err := intOf(limit.Rowcount)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if n <= 0 {
		return 0, errors.NotValidf("LIMIT %d", n)
	}
	return int(n), nil
}

func (p *predicate) add(expr sqlparser.Expr) error {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		if err := p.add(e.Left); err != nil {
			return err
		}
		return p.add(e.Right)
	case *sqlparser.ParenExpr:
		return p.add(e.Expr)
	case *sqlparser.ComparisonExpr:
		col, ok := e.Left.(*sqlparser.ColName)
		if !ok {
			return errors.NotValidf("condition %s", sqlparser.String(e))
		}
		switch col.Name.Lowered() {
		case RowKeyColumn:
			return p.addRowKey(e)
		case TimestampColumn:
			return p.addTimestamp(e)
		}
		return errors.NotValidf("condition on column %s", col.Name.String())
	}
	return errors.NotValidf("condition %s", sqlparser.String(expr))
}

func (p *predicate) addRowKey(e *sqlparser.ComparisonExpr) error {
	if e.Operator == sqlparser.InStr {
		tuple, ok := e.Right.(sqlparser.ValTuple)
		if !ok {
			return errors.NotValidf("IN %s", sqlparser.String(e.Right))
		}
		if p.hasKeys {
			return errors.NotValidf("row key restricted twice")
		}
		for _, v := range tuple {
			key, err := bytesOf(v)
			if err != nil {
				return errors.Trace(err)
			}
			p.keys = append(p.keys, key)
		}
		p.hasKeys = true
		return nil
	}

	key, err := bytesOf(e.Right)
	if err != nil {
		return errors.Trace(err)
	}
	switch e.Operator {
	case sqlparser.EqualStr:
		if p.hasKeys {
			return errors.NotValidf("row key restricted twice")
		}
		p.keys, p.hasKeys = [][]byte{key}, true
	case sqlparser.GreaterEqualStr:
		p.start = key
	case sqlparser.GreaterThanStr:
		p.start = append(key, 0)
	case sqlparser.LessThanStr:
		p.stop = key
	case sqlparser.LessEqualStr:
		p.stop = append(key, 0)
	case sqlparser.LikeStr:
		prefix, ok := bytes.CutSuffix(key, []byte("%"))
		if !ok || bytes.ContainsAny(prefix, "%_") {
			return errors.NotValidf("LIKE pattern %q", key)
		}
		p.prefix = prefix
	default:
		return errors.NotValidf("row key operator %s", e.Operator)
	}
	return nil
}

func (p *predicate) addTimestamp(e *sqlparser.ComparisonExpr) error {
	ts, err := intOf(e.Right)
	if err != nil {
		return errors.Trace(err)
	}
	switch e.Operator {
	case sqlparser.LessThanStr:
		p.tsBefore, p.hasTsBefore = ts, true
	case sqlparser.LessEqualStr:
		p.tsUpTo, p.hasTsUpTo = ts, true
	default:
		return errors.NotValidf("timestamp operator %s", e.Operator)
	}
	if p.hasTsBefore && p.hasTsUpTo {
		return errors.NotValidf("timestamp restricted twice")
	}
	return nil
}

func bytesOf(expr sqlparser.Expr) ([]byte, error) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok {
		return nil, errors.NotValidf("value %s", sqlparser.String(expr))
	}
	switch v.Type {
	case sqlparser.StrVal, sqlparser.IntVal, sqlparser.FloatVal:
		return append([]byte{}, v.Val...), nil
	}
	return nil, errors.NotValidf("value %s", sqlparser.String(expr))
}

func intOf(expr sqlparser.Expr) (int64, error) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.IntVal {
		return 0, errors.NotValidf("integer %s", sqlparser.String(expr))
	}
	n, err := strconv.ParseInt(string(v.Val), 10, 64)
	if err != nil {
		return 0, errors.NewNotValid(err, "integer")
	}
	return n, nil
}

func buildInsertPlan(stmt *sqlparser.Insert) (PlanNode, error) {
	table := stmt.Table.Name.String()

	keyAt, tsAt := -1, -1
	cols := make([]string, len(stmt.Columns))
	for i, col := range stmt.Columns {
		cols[i] = col.String()
		switch strings.ToLower(cols[i]) {
		case RowKeyColumn:
			keyAt = i
		case TimestampColumn:
			tsAt = i
		}
	}
	if keyAt < 0 {
		return nil, errors.NotValidf("INSERT without %s column", RowKeyColumn)
	}

	tuples, ok := stmt.Rows.(sqlparser.Values)
	if !ok {
		return nil, errors.NotValidf("INSERT from SELECT")
	}

	node := &PutNode{Table: table}
	for _, tuple := range tuples {
		if len(tuple) != len(cols) {
			return nil, errors.NotValidf("%d values for %d columns", len(tuple), len(cols))
		}
		row := PutRow{Data: make(map[string][]byte, len(cols))}
		for i, val := range tuple {
			if _, null := val.(*sqlparser.NullVal); null {
				continue
			}
			switch i {
			case keyAt:
				key, err := bytesOf(val)
				if err != nil {
					return nil, errors.Trace(err)
				}
				row.Key = key
			case tsAt:
				ts, err := intOf(val)
				if err != nil {
					return nil, errors.Trace(err)
				}
				row.Timestamp, row.HasTimestamp = ts, true
			default:
				v, err := bytesOf(val)
				if err != nil {
					return nil, errors.Trace(err)
				}
				row.Data[cols[i]] = v
			}
		}
		if row.Key == nil {
			return nil, errors.NotValidf("NULL %s", RowKeyColumn)
		}
		node.Rows = append(node.Rows, row)
	}
	return node, nil
}

func buildDeletePlan(stmt *sqlparser.Delete) (PlanNode, error) {
	table, err := tableOf(stmt.TableExprs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if stmt.Where == nil {
		return nil, errors.NotValidf("DELETE without WHERE")
	}

	var p predicate
	if err := p.add(stmt.Where.Expr); err != nil {
		return nil, errors.Trace(err)
	}
	if !p.hasKeys || p.hasRange() || p.prefix != nil {
		return nil, errors.NotValidf("DELETE must name its rows with = or IN")
	}

	node := &DeleteNode{Table: table, Keys: p.keys}
	switch {
	case p.hasTsUpTo:
		node.UpTo, node.HasUpTo = p.tsUpTo, true
	case p.hasTsBefore && p.tsBefore == math.MinInt64:
		// No version is older than MinInt64
		node.Keys = nil
	case p.hasTsBefore:
		node.UpTo, node.HasUpTo = p.tsBefore-1, true
	}
	return node, nil
}
