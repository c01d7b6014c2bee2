package queryengine

import (
	"context"
)

// SchemaCompiler turns raw schema text into configuration and a datamodel.
// Both methods report schema problems as Diagnostics.
type SchemaCompiler interface {
	ParseConfiguration(raw string) (ValidatedConfiguration, error)
	ParseDatamodel(raw string) (Datamodel, error)
}

// QuerySchema is the compiled query surface of a connected datamodel.
type QuerySchema interface {
	InternalDataModel() InternalDataModel
}

// Response is the execution service's reply to one request body. The engine passes it through unchanged.
type Response any

// Connector is the primary database connector of an executor.
type Connector interface {
	Name() string
	GetConnection(ctx context.Context) error
}

// Executor handles request bodies against one connected database.
type Executor interface {
	PrimaryConnector() Connector
	Handle(ctx context.Context, body RequestBody, schema QuerySchema, txID string) Response
	Close() error
}

// ExecutionService loads executors and compiles query schemas.
type ExecutionService interface {
	Load(ctx context.Context, datasource Datasource, previewFeatures []string, url string) (dbName string, executor Executor, err error)
	BuildQuerySchema(idm InternalDataModel, enableRawQueries bool, capabilities Capabilities, previewFeatures []string) (QuerySchema, error)
}
