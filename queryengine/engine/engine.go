package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/codes"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/executor"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/schema"
)

const (
	defaultConfigDir = "."

	captureSpanQuery     = "query"
	captureAttrRequestID = "request_id"

	msgNoValidDatasource = "No valid data source found"
)

// Params are the construction parameters of a QueryEngine.
type Params struct {
	// Env is the environment env() calls in the schema resolve against.
	Env map[string]string
	// Datamodel is the raw schema text.
	Datamodel string
	// LogLevel is a capture filter directive list such as "info" or "warn,executor=debug".
	LogLevel   string
	LogQueries bool
	// DatasourceOverrides replace datasource URLs by datasource name. They are applied in key order.
	DatasourceOverrides map[string]string
	// IgnoreEnvVarErrors defers URL resolution to Connect.
	IgnoreEnvVarErrors bool
}

// datamodel is the schema document. It is immutable and shared by both states.
type datamodel struct {
	raw       string
	ast       queryengine.Datamodel
	overrides []queryengine.Override
}

// engineState is implemented by *engineBuilder and *connectedEngine only.
type engineState interface {
	captureLogger() *logcapture.ChannelLogger
}

type engineBuilder struct {
	datamodel datamodel
	config    queryengine.ValidatedConfiguration
	logger    *logcapture.ChannelLogger
	configDir string
	env       queryengine.EnvLookup
}

type connectedEngine struct {
	datamodel   datamodel
	querySchema queryengine.QuerySchema
	executor    queryengine.Executor
	logger      *logcapture.ChannelLogger
	configDir   string
	env         queryengine.EnvLookup
}

func (b *engineBuilder) captureLogger() *logcapture.ChannelLogger {
	return b.logger
}

func (c *connectedEngine) captureLogger() *logcapture.ChannelLogger {
	return c.logger
}

// QueryEngine is the engine lifecycle state machine. It is safe for concurrent use.
type QueryEngine struct {
	mu    sync.RWMutex
	state engineState

	compiler           queryengine.SchemaCompiler
	service            queryengine.ExecutionService
	configDir          string
	ignoreEnvVarErrors bool
	logOptions         []logcapture.Option
	captureLogger      *logcapture.ChannelLogger

	logger           queryengine.Logger
	contextualLogger queryengine.ContextualLogger
	metricsCollector queryengine.MetricsCollector
	tracingCollector queryengine.TracingCollector
}

// New parses and validates the schema and returns an engine in the Builder state.
func New(params Params, options ...Option) (*QueryEngine, error) {
	qe := &QueryEngine{
		configDir:          defaultConfigDir,
		ignoreEnvVarErrors: params.IgnoreEnvVarErrors,
	}

	for _, option := range options {
		if err := option(qe); err != nil {
			return nil, err
		}
	}

	if qe.compiler == nil {
		qe.compiler = schema.NewCompiler()
	}

	if qe.service == nil {
		service, err := executor.NewService()
		if err != nil {
			return nil, err
		}

		qe.service = service
	}

	dm := datamodel{raw: params.Datamodel, overrides: queryengine.SortedOverrides(params.DatasourceOverrides)}
	env := queryengine.EnvLookupFromMap(params.Env)

	config, err := qe.parseConfiguration(dm, env)
	if err != nil {
		return nil, err
	}

	if err = config.ValidateOneDatasource(); err != nil {
		return nil, err
	}

	dm.ast, err = qe.compiler.ParseDatamodel(dm.raw)
	if err != nil {
		return nil, queryengine.NewSchemaCompilationError(queryengine.AsDiagnostics(err), dm.raw)
	}

	logger := qe.captureLogger
	if logger == nil {
		logger, err = logcapture.New(params.LogLevel, params.LogQueries, qe.logOptions...)
		if err != nil {
			return nil, queryengine.NewConfigurationErrorFrom(err)
		}
	}

	qe.state = &engineBuilder{
		datamodel: dm,
		config:    config,
		logger:    logger,
		configDir: qe.configDir,
		env:       env,
	}

	return qe, nil
}

// parseConfiguration parses the configuration and, unless deferred, resolves datasource URLs.
func (qe *QueryEngine) parseConfiguration(dm datamodel, env queryengine.EnvLookup) (queryengine.ValidatedConfiguration, error) {
	config, err := qe.compiler.ParseConfiguration(dm.raw)
	if err != nil {
		return queryengine.ValidatedConfiguration{}, queryengine.NewSchemaCompilationError(queryengine.AsDiagnostics(err), dm.raw)
	}

	if !qe.ignoreEnvVarErrors {
		if err = config.ResolveDatasourceURLs(dm.overrides, env); err != nil {
			return queryengine.ValidatedConfiguration{}, queryengine.NewSchemaCompilationError(queryengine.AsDiagnostics(err), dm.raw)
		}
	}

	return config, nil
}

// Connect loads the executor, checks connectivity and compiles the query schema.
// On any failure the engine stays in the Builder state.
func (qe *QueryEngine) Connect(ctx context.Context) error {
	qe.mu.Lock()
	defer qe.mu.Unlock()

	observer, ctx := qe.startObservation(ctx, operationConnect)

	builder, ok := qe.state.(*engineBuilder)
	if !ok {
		err := queryengine.NewAlreadyConnectedError()
		observer.finishError(err)

		return err
	}

	connected, err := logcapture.WithLogging(ctx, builder.logger, func(ctx context.Context) (*connectedEngine, error) {
		return qe.connect(ctx, builder)
	})
	if err != nil {
		observer.finishError(err)
		return err
	}

	qe.state = connected
	qe.recordConnected(ctx, true)
	observer.finishSuccess()

	return nil
}

func (qe *QueryEngine) connect(ctx context.Context, builder *engineBuilder) (*connectedEngine, error) {
	template := queryengine.ConvertDatamodel(builder.datamodel.ast)

	if len(builder.config.Datasources) == 0 {
		return nil, queryengine.NewConfigurationError(msgNoValidDatasource)
	}

	datasource := builder.config.Datasources[0]
	previewFeatures := builder.config.PreviewFeatures()

	url, err := datasource.LoadURLWithConfigDir(builder.configDir, builder.env)
	if err != nil {
		if _, isEngineErr := queryengine.KindOf(err); isEngineErr {
			return nil, err
		}

		return nil, queryengine.NewSchemaCompilationError(queryengine.AsDiagnostics(err), builder.datamodel.raw)
	}

	dbName, loaded, err := qe.service.Load(ctx, datasource, previewFeatures, url)
	if err != nil {
		return nil, queryengine.WrapError(queryengine.KindExecutionService, err)
	}

	if err = loaded.PrimaryConnector().GetConnection(ctx); err != nil {
		qe.closeExecutor(ctx, loaded)
		return nil, queryengine.WrapError(queryengine.KindConnector, err)
	}

	querySchema, err := qe.service.BuildQuerySchema(template.Build(dbName), true, datasource.Capabilities(), previewFeatures)
	if err != nil {
		qe.closeExecutor(ctx, loaded)
		return nil, queryengine.WrapError(queryengine.KindExecutionService, err)
	}

	return &connectedEngine{
		datamodel:   builder.datamodel,
		querySchema: querySchema,
		executor:    loaded,
		logger:      builder.logger,
		configDir:   builder.configDir,
		env:         builder.env,
	}, nil
}

// Disconnect closes the executor and returns to the Builder state with a freshly parsed configuration.
func (qe *QueryEngine) Disconnect(ctx context.Context) error {
	qe.mu.Lock()
	defer qe.mu.Unlock()

	observer, ctx := qe.startObservation(ctx, operationDisconnect)

	connected, ok := qe.state.(*connectedEngine)
	if !ok {
		err := queryengine.NewNotConnectedError()
		observer.finishError(err)

		return err
	}

	err := connected.logger.WithLogging(ctx, func(ctx context.Context) error {
		config, err := qe.parseConfiguration(connected.datamodel, connected.env)
		if err != nil {
			return err
		}

		qe.closeExecutor(ctx, connected.executor)

		qe.state = &engineBuilder{
			datamodel: connected.datamodel,
			config:    config,
			logger:    connected.logger,
			configDir: connected.configDir,
			env:       connected.env,
		}

		return nil
	})
	if err != nil {
		observer.finishError(err)
		return err
	}

	qe.recordConnected(ctx, false)
	observer.finishSuccess()

	return nil
}

// Query decodes body and hands it to the executor. trace carries W3C trace context headers of the caller.
// The executor's response is returned unmodified.
func (qe *QueryEngine) Query(
	ctx context.Context,
	body string,
	trace map[string]string,
	txID string,
) (queryengine.Response, error) {

	qe.mu.RLock()
	defer qe.mu.RUnlock()

	observer, ctx := qe.startObservation(ctx, operationQuery)

	connected, ok := qe.state.(*connectedEngine)
	if !ok {
		err := queryengine.NewNotConnectedError()
		observer.finishError(err)

		return nil, err
	}

	response, err := logcapture.WithLogging(ctx, connected.logger, func(ctx context.Context) (queryengine.Response, error) {
		ctx = logcapture.WithAttrs(ctx, captureAttrRequestID, uuid.NewString())
		ctx = logcapture.ExtractTraceContext(ctx, trace)

		ctx, span := connected.logger.StartSpan(ctx, captureSpanQuery)
		defer span.End()

		requestBody, err := queryengine.DecodeRequestBody([]byte(body))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, queryengine.NewJSONDecodeError(err)
		}

		return connected.executor.Handle(ctx, requestBody, connected.querySchema, txID), nil
	})
	if err != nil {
		observer.finishError(err)
		return nil, err
	}

	observer.finishSuccess()

	return response, nil
}

// QueryString is Query with the response encoded as JSON.
func (qe *QueryEngine) QueryString(ctx context.Context, body string, trace map[string]string, txID string) (string, error) {
	response, err := qe.Query(ctx, body, trace, txID)
	if err != nil {
		return "", err
	}

	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(response)
	if err != nil {
		return "", queryengine.NewJSONDecodeError(err)
	}

	return encoded, nil
}

// IsConnected reports whether the engine is in the Connected state.
func (qe *QueryEngine) IsConnected() bool {
	qe.mu.RLock()
	defer qe.mu.RUnlock()

	_, ok := qe.state.(*connectedEngine)

	return ok
}

// CaptureLogger returns the logger events of every call are captured with.
func (qe *QueryEngine) CaptureLogger() *logcapture.ChannelLogger {
	qe.mu.RLock()
	defer qe.mu.RUnlock()

	return qe.state.captureLogger()
}

func (qe *QueryEngine) closeExecutor(ctx context.Context, loaded queryengine.Executor) {
	if err := loaded.Close(); err != nil {
		qe.logWarn(ctx, logMsgCloseExecutorFailed, logAttrError, err.Error())
	}
}
