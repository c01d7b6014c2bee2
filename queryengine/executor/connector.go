package executor

import (
	"context"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/executor/internal/adapters"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

// connector checks connectivity of the executor's pool.
type connector struct {
	name string
	db   adapters.DBAdapter
}

func (c *connector) Name() string {
	return c.name
}

// GetConnection acquires a connection and pings the server.
func (c *connector) GetConnection(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return queryengine.NewConnectorError(err, connectionUserFacingError(err, c.name))
	}

	logcapture.FromContext(ctx, moduleExecutor).DebugContext(ctx, logMsgConnectionVerified, logAttrConnector, c.name)

	return nil
}
