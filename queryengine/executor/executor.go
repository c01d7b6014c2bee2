package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/executor/internal/adapters"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

const moduleExecutor = "executor"

// Log messages.
const (
	logMsgQuery              = "executed sql"
	logMsgRequestFailed      = "request failed"
	logMsgBatchRolledBack    = "transactional batch rolled back"
	logMsgRollbackFailed     = "rollback failed"
	logMsgConnectionVerified = "connection verified"
	logMsgExecutorLoaded     = "executor loaded"
)

// Log attribute keys.
const (
	logAttrQuery           = "query"
	logAttrParams          = "params"
	logAttrDurationMS      = "duration_ms"
	logAttrError           = "error"
	logAttrConnector       = "connector"
	logAttrPreviewFeatures = "preview_features"
)

const (
	typenameField     = "__typename"
	typenameQuery     = "Query"
	typenameMutation  = "Mutation"
	typenameAffected  = "AffectedRowsOutput"
	affectedRowsCount = "count"
	sqliteRowID       = "rowid"
)

// Executor runs requests against one database. Safe for concurrent use.
type Executor struct {
	db              adapters.DBAdapter
	dialect         goqu.DialectWrapper
	provider        string
	connector       *connector
	previewFeatures []string
}

func (e *Executor) PrimaryConnector() queryengine.Connector {
	return e.connector
}

// Close releases the connection pool.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Handle executes a single query or a batch. Failures are reported inside the response.
func (e *Executor) Handle(
	ctx context.Context,
	body queryengine.RequestBody,
	schema queryengine.QuerySchema,
	txID string,
) queryengine.Response {

	querySchema, ok := schema.(*QuerySchema)
	if !ok {
		return errorResponse(ErrUnexpectedQuerySchema, nil)
	}

	if txID != "" {
		return errorResponse(
			ErrTransactionNotFound,
			newUserFacingError(codeTransactionNotFound, ErrTransactionNotFound.Error(), map[string]any{"id": txID}),
		)
	}

	if !body.IsBatch() {
		return e.execute(ctx, e.db, querySchema, *body.Single)
	}

	if body.Transaction {
		return e.executeTransactionalBatch(ctx, querySchema, body.Batch)
	}

	results := make([]GQLResponse, 0, len(body.Batch))
	for _, query := range body.Batch {
		results = append(results, e.execute(ctx, e.db, querySchema, query))
	}

	return BatchResponse{BatchResult: results}
}

func (e *Executor) executeTransactionalBatch(
	ctx context.Context,
	querySchema *QuerySchema,
	batch []queryengine.SingleQuery,
) BatchResponse {

	logger := logcapture.FromContext(ctx, moduleExecutor)

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return BatchResponse{BatchResult: []GQLResponse{}, Errors: []GQLError{{Error: err.Error(), UserFacingError: databaseUserFacingError(err)}}}
	}

	results := make([]GQLResponse, 0, len(batch))
	for _, query := range batch {
		result := e.execute(ctx, tx, querySchema, query)
		if len(result.Errors) > 0 {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				logger.WarnContext(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
			}

			logger.InfoContext(ctx, logMsgBatchRolledBack, logAttrError, result.Errors[0].Error)

			return BatchResponse{BatchResult: []GQLResponse{}, Errors: result.Errors}
		}

		results = append(results, result)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return BatchResponse{BatchResult: []GQLResponse{}, Errors: []GQLError{{Error: commitErr.Error(), UserFacingError: databaseUserFacingError(commitErr)}}}
	}

	return BatchResponse{BatchResult: results}
}

func (e *Executor) execute(
	ctx context.Context,
	querier adapters.DBQuerier,
	querySchema *QuerySchema,
	query queryengine.SingleQuery,
) GQLResponse {

	logger := logcapture.FromContext(ctx, moduleExecutor)

	document, validationErrs := gqlparser.LoadQuery(querySchema.schema, query.Query)
	if len(validationErrs) > 0 {
		logger.InfoContext(ctx, logMsgRequestFailed, logAttrError, validationErrs.Error())
		return errorResponse(validationErrs, newUserFacingError(codeQueryValidation, validationErrs.Error(), nil))
	}

	operation := document.Operations.ForName(query.OperationName)
	if operation == nil {
		return requestFailed(ctx, fmt.Errorf("%w: %q", ErrUnknownOperation, query.OperationName))
	}

	variables, err := variableValues(operation, query.Variables)
	if err != nil {
		return requestFailed(ctx, err)
	}

	typename := typenameQuery
	if operation.Operation == ast.Mutation {
		typename = typenameMutation
	}

	fields, err := flattenSelection(operation.SelectionSet)
	if err != nil {
		return requestFailed(ctx, err)
	}

	data := make(map[string]any, len(fields))
	for _, field := range fields {
		if field.Name == typenameField {
			data[field.Alias] = typename
			continue
		}

		value, resolveErr := e.resolve(ctx, querier, querySchema, field, variables)
		if resolveErr != nil {
			return requestFailed(ctx, resolveErr)
		}

		data[field.Alias] = value
	}

	return GQLResponse{Data: data}
}

func requestFailed(ctx context.Context, err error) GQLResponse {
	logcapture.FromContext(ctx, moduleExecutor).InfoContext(ctx, logMsgRequestFailed, logAttrError, err.Error())

	var dbErr *databaseError
	if errors.As(err, &dbErr) {
		return errorResponse(err, dbErr.userFacing())
	}

	return errorResponse(err, newUserFacingError(codeQueryValidation, err.Error(), nil))
}

func (e *Executor) resolve(
	ctx context.Context,
	querier adapters.DBQuerier,
	querySchema *QuerySchema,
	field *ast.Field,
	variables map[string]any,
) (any, error) {

	operation, ok := querySchema.operations[field.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, field.Name)
	}

	args := field.ArgumentMap(variables)

	switch operation.action {
	case actionQueryRaw:
		return e.queryRaw(ctx, querier, args)
	case actionExecuteRaw:
		return e.executeRaw(ctx, querier, args)
	}

	model, ok := querySchema.idm.FindModel(operation.model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, field.Name)
	}

	builder := statementBuilder{
		dialect:     e.dialect,
		dbName:      querySchema.idm.DBName,
		model:       model,
		insensitive: querySchema.capabilities.Contains(queryengine.CapabilityInsensitiveFilters),
	}

	switch operation.action {
	case actionFindMany:
		return e.findMany(ctx, querier, builder, field, args)
	case actionFindFirst:
		return e.findFirst(ctx, querier, builder, field, args)
	case actionFindUnique:
		return e.findUnique(ctx, querier, builder, field, args)
	case actionCount:
		return e.count(ctx, querier, builder, args)
	case actionCreateOne:
		return e.createOne(ctx, querier, builder, field, args, querySchema.capabilities)
	case actionUpdateMany:
		return e.updateMany(ctx, querier, builder, field, args)
	case actionDeleteMany:
		return e.deleteMany(ctx, querier, builder, field, args)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, field.Name)
	}
}

func (e *Executor) findMany(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	field *ast.Field,
	args map[string]any,
) (any, error) {

	proj, err := newProjection(builder.model, field.SelectionSet)
	if err != nil {
		return nil, err
	}

	where, err := builder.filter(argMap(args, "where"))
	if err != nil {
		return nil, err
	}

	statement, err := builder.selectStatement(proj, args, where)
	if err != nil {
		return nil, err
	}

	records, err := e.queryRecords(ctx, querier, statement, proj)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (e *Executor) findFirst(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	field *ast.Field,
	args map[string]any,
) (any, error) {

	if args == nil {
		args = make(map[string]any, 1)
	}

	args[argTake] = int64(1)

	return e.firstRecord(e.findMany(ctx, querier, builder, field, args))
}

func (e *Executor) findUnique(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	field *ast.Field,
	args map[string]any,
) (any, error) {

	where, err := builder.uniqueWhere(argMap(args, "where"))
	if err != nil {
		return nil, err
	}

	proj, err := newProjection(builder.model, field.SelectionSet)
	if err != nil {
		return nil, err
	}

	statement, err := builder.selectStatement(proj, map[string]any{argTake: int64(1)}, where)
	if err != nil {
		return nil, err
	}

	return e.firstRecord(e.queryRecords(ctx, querier, statement, proj))
}

func (e *Executor) firstRecord(records any, err error) (any, error) {
	if err != nil {
		return nil, err
	}

	list, _ := records.([]any)
	if len(list) == 0 {
		return nil, nil
	}

	return list[0], nil
}

func (e *Executor) count(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	args map[string]any,
) (any, error) {

	statement, err := builder.countStatement(argMap(args, "where"))
	if err != nil {
		return nil, err
	}

	rows, err := e.query(ctx, querier, statement)
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	var count int64
	if rows.Next() {
		values, scanErr := rows.Values()
		if scanErr != nil {
			return nil, &databaseError{err: scanErr}
		}

		count, _ = toInt64(values[0])
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, &databaseError{err: rowsErr}
	}

	return count, nil
}

func (e *Executor) createOne(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	field *ast.Field,
	args map[string]any,
	capabilities queryengine.Capabilities,
) (any, error) {

	record, err := builder.record(argMap(args, "data"))
	if err != nil {
		return nil, err
	}

	proj, err := newProjection(builder.model, field.SelectionSet)
	if err != nil {
		return nil, err
	}

	if capabilities.Contains(queryengine.CapabilityReturning) {
		statement, buildErr := builder.insertReturningStatement(record, proj)
		if buildErr != nil {
			return nil, buildErr
		}

		created, queryErr := e.firstRecord(e.queryRecords(ctx, querier, statement, proj))
		if queryErr != nil {
			return nil, queryErr
		}

		if created == nil {
			return nil, &databaseError{err: ErrNoRecordReturned}
		}

		return created, nil
	}

	statement, err := builder.insertStatement(record)
	if err != nil {
		return nil, err
	}

	result, err := e.exec(ctx, querier, statement)
	if err != nil {
		return nil, err
	}

	rowID, err := result.LastInsertID()
	if err != nil {
		return nil, &databaseError{err: err}
	}

	selectCreated, err := builder.selectStatement(proj, map[string]any{argTake: int64(1)}, goqu.C(sqliteRowID).Eq(rowID))
	if err != nil {
		return nil, err
	}

	created, err := e.firstRecord(e.queryRecords(ctx, querier, selectCreated, proj))
	if err != nil {
		return nil, err
	}

	if created == nil {
		return nil, &databaseError{err: ErrNoRecordReturned}
	}

	return created, nil
}

func (e *Executor) updateMany(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	field *ast.Field,
	args map[string]any,
) (any, error) {

	record, err := builder.record(argMap(args, "data"))
	if err != nil {
		return nil, err
	}

	if len(record) == 0 {
		return e.affectedRows(field, 0), nil
	}

	statement, err := builder.updateStatement(record, argMap(args, "where"))
	if err != nil {
		return nil, err
	}

	return e.execAffected(ctx, querier, statement, field)
}

func (e *Executor) deleteMany(
	ctx context.Context,
	querier adapters.DBQuerier,
	builder statementBuilder,
	field *ast.Field,
	args map[string]any,
) (any, error) {

	statement, err := builder.deleteStatement(argMap(args, "where"))
	if err != nil {
		return nil, err
	}

	return e.execAffected(ctx, querier, statement, field)
}

func (e *Executor) execAffected(
	ctx context.Context,
	querier adapters.DBQuerier,
	statement sqlStatement,
	field *ast.Field,
) (any, error) {

	result, err := e.exec(ctx, querier, statement)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, &databaseError{err: err}
	}

	return e.affectedRows(field, affected), nil
}

func (e *Executor) affectedRows(field *ast.Field, affected int64) map[string]any {
	selected, _ := flattenSelection(field.SelectionSet)

	output := make(map[string]any, len(selected))
	for _, sub := range selected {
		switch sub.Name {
		case affectedRowsCount:
			output[sub.Alias] = affected
		case typenameField:
			output[sub.Alias] = typenameAffected
		}
	}

	return output
}

func (e *Executor) queryRaw(ctx context.Context, querier adapters.DBQuerier, args map[string]any) (any, error) {
	query, _ := args["query"].(string)

	parameters, err := rawParameters(args["parameters"])
	if err != nil {
		return nil, err
	}

	rows, err := e.query(ctx, querier, sqlStatement{sql: query, args: parameters, raw: true})
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, &databaseError{err: err, raw: true}
	}

	records := make([]any, 0)
	for rows.Next() {
		values, scanErr := rows.Values()
		if scanErr != nil {
			return nil, &databaseError{err: scanErr, raw: true}
		}

		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = rawValue(values[i])
		}

		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, &databaseError{err: rowsErr, raw: true}
	}

	return records, nil
}

func (e *Executor) executeRaw(ctx context.Context, querier adapters.DBQuerier, args map[string]any) (any, error) {
	query, _ := args["query"].(string)

	parameters, err := rawParameters(args["parameters"])
	if err != nil {
		return nil, err
	}

	result, err := e.exec(ctx, querier, sqlStatement{sql: query, args: parameters, raw: true})
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, &databaseError{err: err, raw: true}
	}

	return affected, nil
}

func (e *Executor) queryRecords(
	ctx context.Context,
	querier adapters.DBQuerier,
	statement sqlStatement,
	proj projection,
) (any, error) {

	rows, err := e.query(ctx, querier, statement)
	if err != nil {
		return nil, err
	}
	defer e.closeRows(ctx, rows)

	records := make([]any, 0)
	for rows.Next() {
		values, scanErr := rows.Values()
		if scanErr != nil {
			return nil, &databaseError{err: scanErr}
		}

		records = append(records, proj.record(values))
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, &databaseError{err: rowsErr}
	}

	return records, nil
}

func (e *Executor) query(ctx context.Context, querier adapters.DBQuerier, statement sqlStatement) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := querier.Query(ctx, statement.sql, statement.args...)
	e.logQuery(ctx, statement, time.Since(start))

	if err != nil {
		return nil, &databaseError{err: err, raw: statement.raw}
	}

	return rows, nil
}

func (e *Executor) exec(ctx context.Context, querier adapters.DBQuerier, statement sqlStatement) (adapters.DBResult, error) {
	start := time.Now()
	result, err := querier.Exec(ctx, statement.sql, statement.args...)
	e.logQuery(ctx, statement, time.Since(start))

	if err != nil {
		return nil, &databaseError{err: err, raw: statement.raw}
	}

	return result, nil
}

func (e *Executor) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		logcapture.FromContext(ctx, moduleExecutor).WarnContext(ctx, "closing rows failed", logAttrError, err.Error())
	}
}

// logQuery emits a query log event, captured at any level when query logging is on.
func (e *Executor) logQuery(ctx context.Context, statement sqlStatement, duration time.Duration) {
	logcapture.FromContext(ctx, logcapture.QueryModule).DebugContext(
		ctx,
		logMsgQuery,
		logcapture.QueryField, true,
		logAttrQuery, statement.sql,
		logAttrParams, fmt.Sprint(statement.args),
		logAttrDurationMS, toMilliseconds(duration),
	)
}

// toMilliseconds converts a duration to milliseconds with three decimals.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

type databaseError struct {
	err error
	raw bool
}

func (e *databaseError) Error() string {
	return e.err.Error()
}

func (e *databaseError) Unwrap() error {
	return e.err
}

func (e *databaseError) userFacing() *queryengine.UserFacingError {
	userFacing := databaseUserFacingError(e.err)
	if e.raw && userFacing.ErrorCode == codeUnknownRequestFailure {
		userFacing.ErrorCode = codeRawQueryFailed
		userFacing.Message = "Raw query failed. Message: `" + e.err.Error() + "`"
	}

	return userFacing
}

// variableValues applies defaults and rejects missing non-null variables.
func variableValues(operation *ast.OperationDefinition, provided map[string]any) (map[string]any, error) {
	variables := make(map[string]any, len(operation.VariableDefinitions))

	for _, definition := range operation.VariableDefinitions {
		value, ok := provided[definition.Variable]
		if !ok && definition.DefaultValue != nil {
			defaultValue, err := definition.DefaultValue.Value(nil)
			if err != nil {
				return nil, err
			}

			value, ok = defaultValue, true
		}

		if (!ok || value == nil) && definition.Type.NonNull {
			return nil, fmt.Errorf("%w: $%s", ErrMissingVariable, definition.Variable)
		}

		if ok {
			variables[definition.Variable] = value
		}
	}

	return variables, nil
}

// flattenSelection resolves fragments into the fields they select.
func flattenSelection(selectionSet ast.SelectionSet) ([]*ast.Field, error) {
	fields := make([]*ast.Field, 0, len(selectionSet))

	for _, selection := range selectionSet {
		switch selected := selection.(type) {
		case *ast.Field:
			fields = append(fields, selected)
		case *ast.InlineFragment:
			nested, err := flattenSelection(selected.SelectionSet)
			if err != nil {
				return nil, err
			}

			fields = append(fields, nested...)
		case *ast.FragmentSpread:
			if selected.Definition == nil {
				return nil, ErrUnsupportedSelection
			}

			nested, err := flattenSelection(selected.Definition.SelectionSet)
			if err != nil {
				return nil, err
			}

			fields = append(fields, nested...)
		default:
			return nil, ErrUnsupportedSelection
		}
	}

	return fields, nil
}

func argMap(args map[string]any, key string) map[string]any {
	value, _ := args[key].(map[string]any)
	return value
}
