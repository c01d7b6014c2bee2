package executor

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // driver import
	_ "modernc.org/sqlite" // driver import

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/executor/internal/adapters"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"

	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	adapterPGX  = "pgx"
	adapterSQL  = "sql"
	adapterSQLX = "sqlx"

	defaultPostgresSchema = "public"
	sqliteDatabaseName    = "main"

	paramSchema          = "schema"
	paramSearchPath      = "search_path"
	paramConnectionLimit = "connection_limit"
	paramPoolMaxConns    = "pool_max_conns"

	sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"
)

// Service is the SQL execution service. It is safe for concurrent use and holds no connections itself.
type Service struct {
	maxConnections int32
	connectTimeout time.Duration
}

// NewService creates a Service with PostgreSQL pool defaults.
func NewService(options ...ServiceOption) (*Service, error) {
	service := &Service{
		maxConnections: defaultMaxConnections,
		connectTimeout: defaultConnectTimeout,
	}

	for _, option := range options {
		if err := option(service); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// Load opens a connection pool for the datasource. No connection is established until the connector is checked.
func (s *Service) Load(
	ctx context.Context,
	datasource queryengine.Datasource,
	previewFeatures []string,
	rawURL string,
) (string, queryengine.Executor, error) {

	var (
		dbName   string
		executor *Executor
		err      error
	)

	switch datasource.Provider {
	case queryengine.ProviderPostgreSQL, queryengine.ProviderPostgres:
		dbName, executor, err = s.loadPostgres(ctx, datasource, rawURL)
	case queryengine.ProviderSQLite:
		dbName, executor, err = s.loadSQLite(rawURL)
	default:
		return "", nil, queryengine.NewConfigurationError(fmt.Sprintf("Unsupported datasource provider %q", datasource.Provider))
	}

	if err != nil {
		return "", nil, err
	}

	executor.previewFeatures = append([]string(nil), previewFeatures...)

	logcapture.FromContext(ctx, moduleExecutor).DebugContext(
		ctx,
		logMsgExecutorLoaded,
		logAttrConnector, executor.connector.name,
		logAttrPreviewFeatures, strings.Join(previewFeatures, ","),
	)

	return dbName, executor, nil
}

// BuildQuerySchema compiles the internal data model into the GraphQL query schema.
func (s *Service) BuildQuerySchema(
	idm queryengine.InternalDataModel,
	enableRawQueries bool,
	capabilities queryengine.Capabilities,
	previewFeatures []string,
) (queryengine.QuerySchema, error) {

	return NewQuerySchema(idm, enableRawQueries, capabilities, previewFeatures)
}

func (s *Service) loadPostgres(
	ctx context.Context,
	datasource queryengine.Datasource,
	rawURL string,
) (string, *Executor, error) {

	parsed, err := parsePostgresURL(rawURL)
	if err != nil {
		return "", nil, err
	}

	maxConnections := s.maxConnections
	if parsed.connectionLimit > 0 {
		maxConnections = parsed.connectionLimit
	}

	var db adapters.DBAdapter

	switch datasource.Adapter {
	case "", adapterPGX:
		poolConfig, parseErr := pgxpool.ParseConfig(parsed.dsn)
		if parseErr != nil {
			return "", nil, connectionStringError(parseErr)
		}

		if !parsed.poolSizeInURL {
			poolConfig.MaxConns = maxConnections
		}

		poolConfig.MaxConnLifetime = defaultMaxConnLifetime
		poolConfig.MaxConnIdleTime = defaultMaxConnIdleTime
		poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
		poolConfig.ConnConfig.ConnectTimeout = s.connectTimeout

		pool, poolErr := pgxpool.NewWithConfig(ctx, poolConfig)
		if poolErr != nil {
			return "", nil, connectionStringError(poolErr)
		}

		db = adapters.NewPGXAdapter(pool)

	case adapterSQL:
		sqlDB, openErr := sql.Open(driverPostgres, parsed.dsn)
		if openErr != nil {
			return "", nil, connectionStringError(openErr)
		}

		configureSQLPool(sqlDB, int(maxConnections))
		db = adapters.NewSQLAdapter(sqlDB)

	case adapterSQLX:
		sqlxDB, openErr := sqlx.Open(driverPostgres, parsed.dsn)
		if openErr != nil {
			return "", nil, connectionStringError(openErr)
		}

		configureSQLPool(sqlxDB.DB, int(maxConnections))
		db = adapters.NewSQLXAdapter(sqlxDB)

	default:
		return "", nil, queryengine.NewConfigurationError(fmt.Sprintf("Unsupported adapter %q for provider %q", datasource.Adapter, datasource.Provider))
	}

	return parsed.schema, newExecutor(db, dialectPostgres, datasource.Provider), nil
}

func (s *Service) loadSQLite(rawURL string) (string, *Executor, error) {
	sqlxDB, err := sqlx.Open(driverSQLite, sqliteDSN(rawURL))
	if err != nil {
		return "", nil, connectionStringError(err)
	}

	// One connection keeps :memory: databases alive and serializes writers.
	sqlxDB.SetMaxOpenConns(1)
	sqlxDB.SetMaxIdleConns(1)

	return sqliteDatabaseName, newExecutor(adapters.NewSQLXAdapter(sqlxDB), dialectSQLite, queryengine.ProviderSQLite), nil
}

func configureSQLPool(db *sql.DB, maxConnections int) {
	db.SetMaxOpenConns(maxConnections)
	db.SetMaxIdleConns(maxConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}

func connectionStringError(err error) error {
	return &queryengine.Error{
		Kind:    queryengine.KindConfiguration,
		Message: "Error parsing connection string: " + err.Error(),
		Err:     err,
	}
}

type postgresURL struct {
	dsn             string
	schema          string
	connectionLimit int32
	poolSizeInURL   bool
}

// parsePostgresURL turns the schema and connection_limit parameters into what the drivers understand.
// Key/value DSNs are passed through.
func parsePostgresURL(rawURL string) (postgresURL, error) {
	if !strings.HasPrefix(rawURL, "postgres://") && !strings.HasPrefix(rawURL, "postgresql://") {
		return postgresURL{dsn: rawURL, schema: defaultPostgresSchema}, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return postgresURL{}, connectionStringError(err)
	}

	query := parsed.Query()
	result := postgresURL{schema: defaultPostgresSchema, poolSizeInURL: query.Has(paramPoolMaxConns)}

	if schema := query.Get(paramSchema); schema != "" {
		result.schema = schema
		query.Del(paramSchema)
		query.Set(paramSearchPath, schema)
	}

	if limit := query.Get(paramConnectionLimit); limit != "" {
		value, convErr := strconv.ParseInt(limit, 10, 32)
		if convErr != nil || value <= 0 {
			return postgresURL{}, queryengine.NewConfigurationError(fmt.Sprintf("Invalid connection_limit %q", limit))
		}

		result.connectionLimit = int32(value)
		query.Del(paramConnectionLimit)
	}

	parsed.RawQuery = query.Encode()
	result.dsn = parsed.String()

	return result, nil
}

// sqliteDSN strips the file: prefix and switches on foreign key enforcement.
func sqliteDSN(rawURL string) string {
	dsn := strings.TrimPrefix(rawURL, "file:")
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}

	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteForeignKeysPragma
	}

	return dsn + "?" + sqliteForeignKeysPragma
}

// newExecutor binds an adapter to its SQL dialect.
func newExecutor(db adapters.DBAdapter, dialect, provider string) *Executor {
	name := queryengine.ProviderSQLite
	if dialect == dialectPostgres {
		name = queryengine.ProviderPostgreSQL
	}

	return &Executor{
		db:        db,
		dialect:   goqu.Dialect(dialect),
		provider:  provider,
		connector: &connector{name: name, db: db},
	}
}
