package queryengine

// ScalarType is the type of a model field.
type ScalarType string

const (
	ScalarString   ScalarType = "String"
	ScalarInt      ScalarType = "Int"
	ScalarBigInt   ScalarType = "BigInt"
	ScalarFloat    ScalarType = "Float"
	ScalarBoolean  ScalarType = "Boolean"
	ScalarDateTime ScalarType = "DateTime"
	ScalarJSON     ScalarType = "Json"
)

// ScalarTypes lists the field types a schema may use.
func ScalarTypes() []ScalarType {
	return []ScalarType{ScalarString, ScalarInt, ScalarBigInt, ScalarFloat, ScalarBoolean, ScalarDateTime, ScalarJSON}
}

// Field is one field of a model. DBName is empty until the datamodel is converted.
type Field struct {
	Name            string
	DBName          string
	Type            ScalarType
	IsID            bool
	IsUnique        bool
	IsOptional      bool
	IsAutoincrement bool
}

// Model is one model of a datamodel.
type Model struct {
	Name   string
	DBName string
	Fields []Field
}

// FieldByName finds a field by its schema name.
func (m Model) FieldByName(name string) (Field, bool) {
	for _, field := range m.Fields {
		if field.Name == name {
			return field, true
		}
	}

	return Field{}, false
}

// UniqueFields are the fields a single row can be identified by.
func (m Model) UniqueFields() []Field {
	unique := make([]Field, 0, 1)
	for _, field := range m.Fields {
		if field.IsID || field.IsUnique {
			unique = append(unique, field)
		}
	}

	return unique
}

// Datamodel is the validated model part of a schema.
type Datamodel struct {
	Models []Model
}

// DatamodelTemplate is a datamodel with database names filled in, not yet bound to a database.
type DatamodelTemplate struct {
	models []Model
}

// ConvertDatamodel copies the datamodel and defaults every database name to its schema name.
func ConvertDatamodel(datamodel Datamodel) DatamodelTemplate {
	models := make([]Model, 0, len(datamodel.Models))
	for _, model := range datamodel.Models {
		converted := Model{Name: model.Name, DBName: model.DBName, Fields: make([]Field, len(model.Fields))}
		if converted.DBName == "" {
			converted.DBName = model.Name
		}

		copy(converted.Fields, model.Fields)
		for i := range converted.Fields {
			if converted.Fields[i].DBName == "" {
				converted.Fields[i].DBName = converted.Fields[i].Name
			}
		}

		models = append(models, converted)
	}

	return DatamodelTemplate{models: models}
}

// Build binds the template to a database.
func (t DatamodelTemplate) Build(dbName string) InternalDataModel {
	models := make([]Model, len(t.models))
	copy(models, t.models)

	return InternalDataModel{DBName: dbName, Models: models}
}

// InternalDataModel is a converted datamodel bound to a database name.
type InternalDataModel struct {
	DBName string
	Models []Model
}

func (idm InternalDataModel) FindModel(name string) (Model, bool) {
	for _, model := range idm.Models {
		if model.Name == name {
			return model, true
		}
	}

	return Model{}, false
}
