package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

var ErrBuildingQuerySchemaFailed = errors.New("building the query schema failed")
var ErrEmptyQuerySchema = errors.New("the datamodel has no models and raw queries are disabled")

const querySchemaSourceName = "query-schema.graphql"

type action string

const (
	actionFindMany   action = "findMany"
	actionFindFirst  action = "findFirst"
	actionFindUnique action = "findUnique"
	actionCount      action = "count"
	actionCreateOne  action = "createOne"
	actionUpdateMany action = "updateMany"
	actionDeleteMany action = "deleteMany"
	actionQueryRaw   action = "queryRaw"
	actionExecuteRaw action = "executeRaw"
)

type rootOperation struct {
	action action
	model  string
}

// QuerySchema is the compiled GraphQL surface of one connected datamodel.
type QuerySchema struct {
	schema          *ast.Schema
	sdl             string
	idm             queryengine.InternalDataModel
	operations      map[string]rootOperation
	capabilities    queryengine.Capabilities
	previewFeatures []string
}

// NewQuerySchema generates the SDL for the data model and compiles it.
func NewQuerySchema(
	idm queryengine.InternalDataModel,
	enableRawQueries bool,
	capabilities queryengine.Capabilities,
	previewFeatures []string,
) (*QuerySchema, error) {

	if len(idm.Models) == 0 && !enableRawQueries {
		return nil, ErrEmptyQuerySchema
	}

	sdl, operations := generateSDL(idm, enableRawQueries, capabilities)

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: querySchemaSourceName, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBuildingQuerySchemaFailed, err.Error())
	}

	return &QuerySchema{
		schema:          schema,
		sdl:             sdl,
		idm:             idm,
		operations:      operations,
		capabilities:    capabilities,
		previewFeatures: append([]string(nil), previewFeatures...),
	}, nil
}

func (s *QuerySchema) InternalDataModel() queryengine.InternalDataModel {
	return s.idm
}

// SDL returns the generated schema definition.
func (s *QuerySchema) SDL() string {
	return s.sdl
}

type sdlWriter struct {
	strings.Builder
}

func (w *sdlWriter) line(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
	w.WriteByte('\n')
}

func generateSDL(
	idm queryengine.InternalDataModel,
	enableRawQueries bool,
	capabilities queryengine.Capabilities,
) (string, map[string]rootOperation) {

	w := &sdlWriter{}
	operations := make(map[string]rootOperation)
	insensitive := capabilities.Contains(queryengine.CapabilityInsensitiveFilters)

	w.line("scalar DateTime")
	w.line("scalar Json")
	w.line("scalar BigInt")
	w.line("")
	w.line("enum SortOrder { asc desc }")
	w.line("type AffectedRowsOutput { count: Int! }")

	if insensitive {
		w.line("enum QueryMode { default insensitive }")
	}

	writeFilterInputs(w, insensitive)

	var queries, mutations []string

	for _, model := range idm.Models {
		writeModelTypes(w, model)

		name := model.Name
		queries = append(queries,
			fmt.Sprintf("findMany%s(where: %sWhereInput, orderBy: [%sOrderByInput!], take: Int, skip: Int): [%s!]!", name, name, name, name),
			fmt.Sprintf("findFirst%s(where: %sWhereInput, orderBy: [%sOrderByInput!], skip: Int): %s", name, name, name, name),
			fmt.Sprintf("count%s(where: %sWhereInput): Int!", name, name),
		)
		operations[string(actionFindMany)+name] = rootOperation{action: actionFindMany, model: name}
		operations[string(actionFindFirst)+name] = rootOperation{action: actionFindFirst, model: name}
		operations[string(actionCount)+name] = rootOperation{action: actionCount, model: name}

		if len(model.UniqueFields()) > 0 {
			queries = append(queries, fmt.Sprintf("findUnique%s(where: %sWhereUniqueInput!): %s", name, name, name))
			operations[string(actionFindUnique)+name] = rootOperation{action: actionFindUnique, model: name}
		}

		if len(creatableFields(model)) > 0 {
			mutations = append(mutations, fmt.Sprintf("createOne%s(data: %sCreateInput!): %s!", name, name, name))
		} else {
			mutations = append(mutations, fmt.Sprintf("createOne%s: %s!", name, name))
		}
		operations[string(actionCreateOne)+name] = rootOperation{action: actionCreateOne, model: name}

		if len(updatableFields(model)) > 0 {
			mutations = append(mutations, fmt.Sprintf("updateMany%s(where: %sWhereInput, data: %sUpdateInput!): AffectedRowsOutput!", name, name, name))
			operations[string(actionUpdateMany)+name] = rootOperation{action: actionUpdateMany, model: name}
		}

		mutations = append(mutations, fmt.Sprintf("deleteMany%s(where: %sWhereInput): AffectedRowsOutput!", name, name))
		operations[string(actionDeleteMany)+name] = rootOperation{action: actionDeleteMany, model: name}
	}

	if enableRawQueries {
		queries = append(queries, "queryRaw(query: String!, parameters: Json): Json")
		mutations = append(mutations, "executeRaw(query: String!, parameters: Json): Int!")
		operations[string(actionQueryRaw)] = rootOperation{action: actionQueryRaw}
		operations[string(actionExecuteRaw)] = rootOperation{action: actionExecuteRaw}
	}

	writeObject(w, "type", "Query", queries)
	writeObject(w, "type", "Mutation", mutations)

	return w.String(), operations
}

func writeFilterInputs(w *sdlWriter, insensitive bool) {
	comparisons := []string{"equals", "not", "lt", "lte", "gt", "gte"}

	for _, scalar := range queryengine.ScalarTypes() {
		name := string(scalar)
		fields := make([]string, 0, 12)

		switch scalar {
		case queryengine.ScalarBoolean, queryengine.ScalarJSON:
			fields = append(fields, "equals: "+name, "not: "+name)
		default:
			for _, op := range comparisons {
				fields = append(fields, op+": "+name)
			}

			fields = append(fields, "in: ["+name+"!]", "notIn: ["+name+"!]")
		}

		if scalar == queryengine.ScalarString {
			fields = append(fields, "contains: String", "startsWith: String", "endsWith: String")
			if insensitive {
				fields = append(fields, "mode: QueryMode")
			}
		}

		writeObject(w, "input", filterInputName(scalar), fields)
	}
}

func writeModelTypes(w *sdlWriter, model queryengine.Model) {
	name := model.Name

	output := make([]string, 0, len(model.Fields))
	where := []string{
		"AND: [" + name + "WhereInput!]",
		"OR: [" + name + "WhereInput!]",
		"NOT: [" + name + "WhereInput!]",
	}
	orderBy := make([]string, 0, len(model.Fields))
	unique := make([]string, 0, 1)

	for _, field := range model.Fields {
		output = append(output, field.Name+": "+outputType(field))
		where = append(where, field.Name+": "+filterInputName(field.Type))
		orderBy = append(orderBy, field.Name+": SortOrder")

		if field.IsID || field.IsUnique {
			unique = append(unique, field.Name+": "+string(field.Type))
		}
	}

	create := make([]string, 0, len(model.Fields))
	for _, field := range creatableFields(model) {
		typ := string(field.Type)
		if !field.IsOptional && !field.IsAutoincrement {
			typ += "!"
		}

		create = append(create, field.Name+": "+typ)
	}

	update := make([]string, 0, len(model.Fields))
	for _, field := range updatableFields(model) {
		update = append(update, field.Name+": "+string(field.Type))
	}

	writeObject(w, "type", name, output)
	writeObject(w, "input", name+"WhereInput", where)
	writeObject(w, "input", name+"OrderByInput", orderBy)
	writeObject(w, "input", name+"WhereUniqueInput", unique)
	writeObject(w, "input", name+"CreateInput", create)
	writeObject(w, "input", name+"UpdateInput", update)
}

// writeObject skips empty objects, GraphQL has no syntax for them.
func writeObject(w *sdlWriter, keyword, name string, fields []string) {
	if len(fields) == 0 {
		return
	}

	w.line("%s %s {", keyword, name)
	for _, field := range fields {
		w.line("  %s", field)
	}
	w.line("}")
}

func outputType(field queryengine.Field) string {
	if field.IsOptional {
		return string(field.Type)
	}

	return string(field.Type) + "!"
}

func filterInputName(scalar queryengine.ScalarType) string {
	return string(scalar) + "Filter"
}

// creatableFields are all fields except database generated ids.
func creatableFields(model queryengine.Model) []queryengine.Field {
	fields := make([]queryengine.Field, 0, len(model.Fields))
	for _, field := range model.Fields {
		if field.IsID && field.IsAutoincrement {
			continue
		}

		fields = append(fields, field)
	}

	return fields
}

func updatableFields(model queryengine.Model) []queryengine.Field {
	return creatableFields(model)
}
