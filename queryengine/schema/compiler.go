package schema

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

const (
	blockDatasource = "datasource"
	blockGenerator  = "generator"
	blockModel      = "model"
	blockField      = "field"
	attrTable       = "table"
	labelName       = "name"

	adapterPGX  = "pgx"
	adapterSQL  = "sql"
	adapterSQLX = "sqlx"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// names the query schema generates on its own
var reservedModelNames = []string{
	"Query", "Mutation", "AffectedRowsOutput", "SortOrder", "QueryMode",
	"String", "Int", "BigInt", "Float", "Boolean", "DateTime", "Json", "ID",
}

var configurationSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: blockDatasource, LabelNames: []string{labelName}},
		{Type: blockGenerator, LabelNames: []string{labelName}},
	},
}

var datamodelSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: blockDatasource, LabelNames: []string{labelName}},
		{Type: blockGenerator, LabelNames: []string{labelName}},
		{Type: blockModel, LabelNames: []string{labelName}},
	},
}

var modelSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: attrTable}},
	Blocks:     []hcl.BlockHeaderSchema{{Type: blockField, LabelNames: []string{labelName}}},
}

type datasourceBody struct {
	Provider string         `hcl:"provider"`
	URL      hcl.Expression `hcl:"url"`
	Adapter  string         `hcl:"adapter,optional"`
}

type generatorBody struct {
	Provider        string   `hcl:"provider,optional"`
	PreviewFeatures []string `hcl:"preview_features,optional"`
	Remain          hcl.Body `hcl:",remain"`
}

type fieldBody struct {
	Type          string `hcl:"type"`
	ID            bool   `hcl:"id,optional"`
	Unique        bool   `hcl:"unique,optional"`
	Optional      bool   `hcl:"optional,optional"`
	Autoincrement bool   `hcl:"autoincrement,optional"`
	Column        string `hcl:"column,optional"`
}

// Compiler implements queryengine.SchemaCompiler for HCL schemas.
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// ParseConfiguration decodes the datasource and generator blocks and ignores models.
// Datasource URLs are kept unevaluated.
func (c *Compiler) ParseConfiguration(raw string) (queryengine.ValidatedConfiguration, error) {
	file, diags := parse(raw)
	if diags.HasErrors() {
		return queryengine.ValidatedConfiguration{}, newDiagnostics(diags)
	}

	content, _, contentDiags := file.Body.PartialContent(configurationSchema)
	diags = append(diags, contentDiags...)

	config, configDiags := decodeConfiguration(content.Blocks)
	diags = append(diags, configDiags...)

	if diags.HasErrors() {
		return queryengine.ValidatedConfiguration{}, newDiagnostics(diags)
	}

	return config, nil
}

// ParseDatamodel validates the whole schema and returns its models.
func (c *Compiler) ParseDatamodel(raw string) (queryengine.Datamodel, error) {
	file, diags := parse(raw)
	if diags.HasErrors() {
		return queryengine.Datamodel{}, newDiagnostics(diags)
	}

	content, contentDiags := file.Body.Content(datamodelSchema)
	diags = append(diags, contentDiags...)

	_, configDiags := decodeConfiguration(content.Blocks)
	diags = append(diags, configDiags...)

	datamodel, modelDiags := decodeModels(content.Blocks.OfType(blockModel))
	diags = append(diags, modelDiags...)

	if diags.HasErrors() {
		return queryengine.Datamodel{}, newDiagnostics(diags)
	}

	return datamodel, nil
}

func parse(raw string) (*hcl.File, hcl.Diagnostics) {
	// a fresh parser per call, hclparse caches files by name
	return hclparse.NewParser().ParseHCL([]byte(raw), queryengine.SchemaFileName)
}

func decodeConfiguration(blocks hcl.Blocks) (queryengine.ValidatedConfiguration, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	config := queryengine.ValidatedConfiguration{
		Datasources: make([]queryengine.Datasource, 0, 1),
		Generators:  make([]queryengine.Generator, 0),
	}

	seen := map[string]bool{}
	for _, block := range blocks.OfType(blockDatasource) {
		name := block.Labels[0]
		if seen[name] {
			diags = append(diags, errorDiagnostic("Duplicate datasource", fmt.Sprintf("The datasource %q is defined more than once.", name), block.LabelRanges[0]))
			continue
		}
		seen[name] = true

		var body datasourceBody
		if decodeDiags := gohcl.DecodeBody(block.Body, nil, &body); decodeDiags.HasErrors() {
			diags = append(diags, decodeDiags...)
			continue
		}

		diags = append(diags, validateDatasource(body, block)...)

		config.Datasources = append(config.Datasources, queryengine.Datasource{
			Name:     name,
			Provider: body.Provider,
			Adapter:  body.Adapter,
			URL:      urlExpression{expr: body.URL},
		})
	}

	for _, block := range blocks.OfType(blockGenerator) {
		var body generatorBody
		if decodeDiags := gohcl.DecodeBody(block.Body, nil, &body); decodeDiags.HasErrors() {
			diags = append(diags, decodeDiags...)
			continue
		}

		config.Generators = append(config.Generators, queryengine.Generator{
			Name:            block.Labels[0],
			Provider:        body.Provider,
			PreviewFeatures: body.PreviewFeatures,
		})
	}

	return config, diags
}

func validateDatasource(body datasourceBody, block *hcl.Block) hcl.Diagnostics {
	var diags hcl.Diagnostics

	switch body.Provider {
	case queryengine.ProviderPostgreSQL, queryengine.ProviderPostgres:
		if body.Adapter != "" && !slices.Contains([]string{adapterPGX, adapterSQL, adapterSQLX}, body.Adapter) {
			diags = append(diags, errorDiagnostic("Unknown adapter", fmt.Sprintf("The adapter %q is not one of pgx, sql, sqlx.", body.Adapter), block.DefRange))
		}
	case queryengine.ProviderSQLite:
		if body.Adapter != "" && body.Adapter != adapterSQLX {
			diags = append(diags, errorDiagnostic("Unknown adapter", fmt.Sprintf("The sqlite provider only supports the sqlx adapter, got %q.", body.Adapter), block.DefRange))
		}
	default:
		diags = append(diags, errorDiagnostic("Datasource provider not known", fmt.Sprintf("The provider %q is not supported.", body.Provider), block.DefRange))
	}

	return diags
}

func decodeModels(blocks hcl.Blocks) (queryengine.Datamodel, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	datamodel := queryengine.Datamodel{Models: make([]queryengine.Model, 0, len(blocks))}

	seen := map[string]bool{}
	for _, block := range blocks {
		name := block.Labels[0]
		switch {
		case !identifierPattern.MatchString(name):
			diags = append(diags, errorDiagnostic("Invalid model name", fmt.Sprintf("%q is not a valid identifier.", name), block.LabelRanges[0]))
			continue
		case slices.Contains(reservedModelNames, name):
			diags = append(diags, errorDiagnostic("Reserved model name", fmt.Sprintf("The model name %q is reserved.", name), block.LabelRanges[0]))
			continue
		case seen[name]:
			diags = append(diags, errorDiagnostic("Duplicate model", fmt.Sprintf("The model %q is defined more than once.", name), block.LabelRanges[0]))
			continue
		}
		seen[name] = true

		model, modelDiags := decodeModel(name, block)
		diags = append(diags, modelDiags...)
		datamodel.Models = append(datamodel.Models, model)
	}

	return datamodel, diags
}

func decodeModel(name string, block *hcl.Block) (queryengine.Model, hcl.Diagnostics) {
	model := queryengine.Model{Name: name}

	content, diags := block.Body.Content(modelSchema)
	if attr, ok := content.Attributes[attrTable]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &model.DBName)...)
	}

	seen := map[string]bool{}
	ids := 0
	for _, fieldBlock := range content.Blocks.OfType(blockField) {
		fieldName := fieldBlock.Labels[0]
		if !identifierPattern.MatchString(fieldName) {
			diags = append(diags, errorDiagnostic("Invalid field name", fmt.Sprintf("%q is not a valid identifier.", fieldName), fieldBlock.LabelRanges[0]))
			continue
		}

		if seen[fieldName] {
			diags = append(diags, errorDiagnostic("Duplicate field", fmt.Sprintf("The field %q is defined more than once on model %q.", fieldName, name), fieldBlock.LabelRanges[0]))
			continue
		}
		seen[fieldName] = true

		var body fieldBody
		if decodeDiags := gohcl.DecodeBody(fieldBlock.Body, nil, &body); decodeDiags.HasErrors() {
			diags = append(diags, decodeDiags...)
			continue
		}

		field := queryengine.Field{
			Name:            fieldName,
			DBName:          body.Column,
			Type:            queryengine.ScalarType(body.Type),
			IsID:            body.ID,
			IsUnique:        body.Unique,
			IsOptional:      body.Optional,
			IsAutoincrement: body.Autoincrement,
		}

		diags = append(diags, validateField(field, fieldBlock)...)
		if field.IsID {
			ids++
		}

		model.Fields = append(model.Fields, field)
	}

	switch {
	case ids > 1:
		diags = append(diags, errorDiagnostic("Multiple id fields", fmt.Sprintf("The model %q has more than one id field.", name), block.DefRange))
	case len(model.UniqueFields()) == 0 && !diags.HasErrors():
		diags = append(diags, errorDiagnostic(
			"Missing unique criteria",
			fmt.Sprintf("Each model must have at least one unique criteria. Mark a field of %q with id or unique.", name),
			block.DefRange,
		))
	}

	return model, diags
}

func validateField(field queryengine.Field, block *hcl.Block) hcl.Diagnostics {
	var diags hcl.Diagnostics

	if !slices.Contains(queryengine.ScalarTypes(), field.Type) {
		diags = append(diags, errorDiagnostic(
			"Unknown field type",
			fmt.Sprintf("The type %q of field %q is not one of %v.", field.Type, field.Name, queryengine.ScalarTypes()),
			block.DefRange,
		))
	}

	if field.IsID && field.IsOptional {
		diags = append(diags, errorDiagnostic("Optional id field", fmt.Sprintf("The id field %q cannot be optional.", field.Name), block.DefRange))
	}

	if field.IsAutoincrement && (!field.IsID || (field.Type != queryengine.ScalarInt && field.Type != queryengine.ScalarBigInt)) {
		diags = append(diags, errorDiagnostic("Invalid autoincrement", fmt.Sprintf("Only Int or BigInt id fields can autoincrement, %q cannot.", field.Name), block.DefRange))
	}

	return diags
}

var _ queryengine.SchemaCompiler = (*Compiler)(nil)
