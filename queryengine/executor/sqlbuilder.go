package executor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

var (
	ErrBuildingStatementFailed = errors.New("building sql statement failed")
	ErrUnknownField            = errors.New("unknown field")
	ErrUnknownFilter           = errors.New("unknown filter operation")
	ErrInvalidSortOrder        = errors.New("sort order must be asc or desc")
)

const (
	whereAnd = "AND"
	whereOr  = "OR"
	whereNot = "NOT"

	filterEquals     = "equals"
	filterNot        = "not"
	filterIn         = "in"
	filterNotIn      = "notIn"
	filterLt         = "lt"
	filterLte        = "lte"
	filterGt         = "gt"
	filterGte        = "gte"
	filterContains   = "contains"
	filterStartsWith = "startsWith"
	filterEndsWith   = "endsWith"
	filterMode       = "mode"

	modeInsensitive = "insensitive"
	sortAsc         = "asc"
	sortDesc        = "desc"

	argTake    = "take"
	argSkip    = "skip"
	argOrderBy = "orderBy"
)

type sqlStatement struct {
	sql  string
	args []any
	raw  bool
}

// statementBuilder builds parameterized statements for one model.
type statementBuilder struct {
	dialect     goqu.DialectWrapper
	dbName      string
	model       queryengine.Model
	insensitive bool
}

func (b statementBuilder) table() exp.IdentifierExpression {
	if b.dbName == "" {
		return goqu.T(b.model.DBName)
	}

	return goqu.S(b.dbName).Table(b.model.DBName)
}

func (b statementBuilder) selectStatement(proj projection, args map[string]any, where exp.Expression) (sqlStatement, error) {
	selectStmt := b.dialect.From(b.table()).Prepared(true)

	if columns := proj.selectColumns(); len(columns) > 0 {
		selectStmt = selectStmt.Select(columns...)
	}

	if where != nil {
		selectStmt = selectStmt.Where(where)
	}

	order, err := b.orderExpressions(args[argOrderBy])
	if err != nil {
		return sqlStatement{}, err
	}

	if len(order) > 0 {
		selectStmt = selectStmt.Order(order...)
	}

	take, hasTake, err := paginationArg(args, argTake)
	if err != nil {
		return sqlStatement{}, err
	}

	skip, hasSkip, err := paginationArg(args, argSkip)
	if err != nil {
		return sqlStatement{}, err
	}

	switch {
	case hasTake && take == 0:
		selectStmt = selectStmt.Where(goqu.L("1 = 0"))
	case hasTake:
		selectStmt = selectStmt.Limit(uint(take))
	case hasSkip && skip > 0:
		// SQLite has no OFFSET without LIMIT.
		selectStmt = selectStmt.Limit(uint(math.MaxInt64))
	}

	if hasSkip && skip > 0 {
		selectStmt = selectStmt.Offset(uint(skip))
	}

	return toStatement(selectStmt.ToSQL())
}

func (b statementBuilder) countStatement(where map[string]any) (sqlStatement, error) {
	countStmt := b.dialect.From(b.table()).Prepared(true).Select(goqu.COUNT(goqu.Star()))

	filter, err := b.filter(where)
	if err != nil {
		return sqlStatement{}, err
	}

	if filter != nil {
		countStmt = countStmt.Where(filter)
	}

	return toStatement(countStmt.ToSQL())
}

func (b statementBuilder) insertStatement(record goqu.Record) (sqlStatement, error) {
	insertStmt := b.dialect.Insert(b.table()).Prepared(true)
	if len(record) > 0 {
		insertStmt = insertStmt.Rows(record)
	}

	return toStatement(insertStmt.ToSQL())
}

func (b statementBuilder) insertReturningStatement(record goqu.Record, proj projection) (sqlStatement, error) {
	insertStmt := b.dialect.Insert(b.table()).Prepared(true)
	if len(record) > 0 {
		insertStmt = insertStmt.Rows(record)
	}

	if columns := proj.selectColumns(); len(columns) > 0 {
		insertStmt = insertStmt.Returning(columns...)
	} else {
		insertStmt = insertStmt.Returning(goqu.Star())
	}

	return toStatement(insertStmt.ToSQL())
}

func (b statementBuilder) updateStatement(record goqu.Record, where map[string]any) (sqlStatement, error) {
	updateStmt := b.dialect.Update(b.table()).Prepared(true).Set(record)

	filter, err := b.filter(where)
	if err != nil {
		return sqlStatement{}, err
	}

	if filter != nil {
		updateStmt = updateStmt.Where(filter)
	}

	return toStatement(updateStmt.ToSQL())
}

func (b statementBuilder) deleteStatement(where map[string]any) (sqlStatement, error) {
	deleteStmt := b.dialect.Delete(b.table()).Prepared(true)

	filter, err := b.filter(where)
	if err != nil {
		return sqlStatement{}, err
	}

	if filter != nil {
		deleteStmt = deleteStmt.Where(filter)
	}

	return toStatement(deleteStmt.ToSQL())
}

func toStatement(sql string, args []any, err error) (sqlStatement, error) {
	if err != nil {
		return sqlStatement{}, errors.Join(ErrBuildingStatementFailed, err)
	}

	return sqlStatement{sql: sql, args: args}, nil
}

// record maps a create or update input to column values.
func (b statementBuilder) record(data map[string]any) (goqu.Record, error) {
	record := make(goqu.Record, len(data))

	for _, key := range sortedKeys(data) {
		field, ok := b.model.FieldByName(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, b.model.Name, key)
		}

		value, err := toDBValue(field, data[key])
		if err != nil {
			return nil, err
		}

		record[field.DBName] = value
	}

	return record, nil
}

// filter translates a WhereInput. It returns nil when nothing is filtered.
func (b statementBuilder) filter(where map[string]any) (exp.Expression, error) {
	conditions, err := b.conditions(where)
	if err != nil || len(conditions) == 0 {
		return nil, err
	}

	return goqu.And(conditions...), nil
}

func (b statementBuilder) uniqueWhere(where map[string]any) (exp.Expression, error) {
	conditions := make([]exp.Expression, 0, len(where))

	for _, key := range sortedKeys(where) {
		if where[key] == nil {
			continue
		}

		field, ok := b.model.FieldByName(key)
		if !ok || (!field.IsID && !field.IsUnique) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, b.model.Name, key)
		}

		value, err := toDBValue(field, where[key])
		if err != nil {
			return nil, err
		}

		conditions = append(conditions, goqu.C(field.DBName).Eq(value))
	}

	if len(conditions) == 0 {
		return nil, ErrInvalidUniqueWhere
	}

	return goqu.And(conditions...), nil
}

func (b statementBuilder) conditions(where map[string]any) ([]exp.Expression, error) {
	conditions := make([]exp.Expression, 0, len(where))

	for _, key := range sortedKeys(where) {
		value := where[key]
		if value == nil {
			continue
		}

		switch key {
		case whereAnd:
			nested, err := b.nestedConditions(value)
			if err != nil {
				return nil, err
			}

			if len(nested) > 0 {
				conditions = append(conditions, goqu.And(nested...))
			}

		case whereOr:
			nested, err := b.nestedConditions(value)
			if err != nil {
				return nil, err
			}

			if len(nested) == 0 {
				conditions = append(conditions, goqu.L("1 = 0"))
			} else {
				conditions = append(conditions, goqu.Or(nested...))
			}

		case whereNot:
			nested, err := b.nestedConditions(value)
			if err != nil {
				return nil, err
			}

			if len(nested) > 0 {
				conditions = append(conditions, goqu.L("NOT ?", goqu.And(nested...)))
			}

		default:
			field, ok := b.model.FieldByName(key)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, b.model.Name, key)
			}

			filter, _ := value.(map[string]any)

			fieldConditions, err := b.fieldConditions(field, filter)
			if err != nil {
				return nil, err
			}

			conditions = append(conditions, fieldConditions...)
		}
	}

	return conditions, nil
}

// nestedConditions accepts a list of WhereInputs or a single one. Each becomes one condition.
func (b statementBuilder) nestedConditions(value any) ([]exp.Expression, error) {
	var items []any

	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	}

	nested := make([]exp.Expression, 0, len(items))
	for _, item := range items {
		where, _ := item.(map[string]any)

		conditions, err := b.conditions(where)
		if err != nil {
			return nil, err
		}

		if len(conditions) == 0 {
			nested = append(nested, goqu.L("1 = 1"))
			continue
		}

		nested = append(nested, goqu.And(conditions...))
	}

	return nested, nil
}

func (b statementBuilder) fieldConditions(field queryengine.Field, filter map[string]any) ([]exp.Expression, error) {
	column := goqu.C(field.DBName)
	insensitive := b.insensitive && filter[filterMode] == modeInsensitive
	conditions := make([]exp.Expression, 0, len(filter))

	for _, op := range sortedKeys(filter) {
		raw := filter[op]

		switch op {
		case filterMode:
			continue

		case filterEquals, filterNot:
			if raw == nil {
				if op == filterEquals {
					conditions = append(conditions, column.IsNull())
				} else {
					conditions = append(conditions, column.IsNotNull())
				}

				continue
			}

			value, err := toDBValue(field, raw)
			if err != nil {
				return nil, err
			}

			if op == filterEquals {
				conditions = append(conditions, column.Eq(value))
			} else {
				conditions = append(conditions, column.Neq(value))
			}

		case filterIn, filterNotIn:
			if raw == nil {
				continue
			}

			items, _ := raw.([]any)
			values := make([]any, 0, len(items))
			for _, item := range items {
				value, err := toDBValue(field, item)
				if err != nil {
					return nil, err
				}

				values = append(values, value)
			}

			switch {
			case len(values) == 0 && op == filterIn:
				conditions = append(conditions, goqu.L("1 = 0"))
			case len(values) == 0:
				continue
			case op == filterIn:
				conditions = append(conditions, column.In(values))
			default:
				conditions = append(conditions, column.NotIn(values))
			}

		case filterLt, filterLte, filterGt, filterGte:
			if raw == nil {
				continue
			}

			value, err := toDBValue(field, raw)
			if err != nil {
				return nil, err
			}

			conditions = append(conditions, compare(column, op, value))

		case filterContains, filterStartsWith, filterEndsWith:
			if raw == nil {
				continue
			}

			text, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects a string", ErrInvalidFieldValue, op)
			}

			pattern := likePattern(op, text)
			if insensitive {
				conditions = append(conditions, column.ILike(pattern))
			} else {
				conditions = append(conditions, column.Like(pattern))
			}

		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, op)
		}
	}

	return conditions, nil
}

func compare(column exp.IdentifierExpression, op string, value any) exp.Expression {
	switch op {
	case filterLt:
		return column.Lt(value)
	case filterLte:
		return column.Lte(value)
	case filterGt:
		return column.Gt(value)
	default:
		return column.Gte(value)
	}
}

func likePattern(op, text string) string {
	switch op {
	case filterStartsWith:
		return text + "%"
	case filterEndsWith:
		return "%" + text
	default:
		return "%" + text + "%"
	}
}

func (b statementBuilder) orderExpressions(value any) ([]exp.OrderedExpression, error) {
	var items []any

	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	}

	order := make([]exp.OrderedExpression, 0, len(items))
	for _, item := range items {
		fields, _ := item.(map[string]any)

		for _, key := range sortedKeys(fields) {
			field, ok := b.model.FieldByName(key)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, b.model.Name, key)
			}

			switch fields[key] {
			case sortAsc:
				order = append(order, goqu.C(field.DBName).Asc())
			case sortDesc:
				order = append(order, goqu.C(field.DBName).Desc())
			case nil:
				continue
			default:
				return nil, ErrInvalidSortOrder
			}
		}
	}

	return order, nil
}

func paginationArg(args map[string]any, key string) (int64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}

	value, ok := toInt64(raw)
	if !ok || value < 0 {
		return 0, false, ErrInvalidPagination
	}

	return value, true, nil
}

type projectedField struct {
	alias    string
	column   int
	typename bool
}

// projection maps the selected fields of a model to result columns.
type projection struct {
	model   queryengine.Model
	fields  []projectedField
	columns []queryengine.Field
}

func newProjection(model queryengine.Model, selectionSet ast.SelectionSet) (projection, error) {
	selected, err := flattenSelection(selectionSet)
	if err != nil {
		return projection{}, err
	}

	p := projection{model: model}
	columnIndex := make(map[string]int)

	for _, sub := range selected {
		if sub.Name == typenameField {
			p.fields = append(p.fields, projectedField{alias: sub.Alias, typename: true})
			continue
		}

		field, ok := model.FieldByName(sub.Name)
		if !ok {
			return projection{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, model.Name, sub.Name)
		}

		index, seen := columnIndex[field.Name]
		if !seen {
			index = len(p.columns)
			columnIndex[field.Name] = index
			p.columns = append(p.columns, field)
		}

		p.fields = append(p.fields, projectedField{alias: sub.Alias, column: index})
	}

	return p, nil
}

func (p projection) selectColumns() []any {
	columns := make([]any, 0, len(p.columns))
	for _, field := range p.columns {
		columns = append(columns, goqu.C(field.DBName))
	}

	return columns
}

func (p projection) record(values []any) map[string]any {
	record := make(map[string]any, len(p.fields))

	for _, selected := range p.fields {
		if selected.typename {
			record[selected.alias] = p.model.Name
			continue
		}

		if selected.column < len(values) {
			record[selected.alias] = fromDBValue(p.columns[selected.column], values[selected.column])
		}
	}

	return record
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
