package repository

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holymark/auth"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"golang.org/x/sync/singleflight"
)

// DefaultConnectTimeout bounds a shared connect attempt
const DefaultConnectTimeout = 10 * time.Second

// ConnectFunc opens a client for uri
type ConnectFunc func(ctx context.Context, uri string) (*mongo.Client, error)

// MongoConnector connects once and hands the same client to every caller.
// Concurrent callers that arrive while the first connect is in flight wait
// for it instead of dialing on their own. A failed connect is not cached.
type MongoConnector struct {
	uri     string
	connect ConnectFunc
	timeout time.Duration
	logger  auth.Logger
	group   singleflight.Group

	mu     sync.RWMutex
	client *mongo.Client
}

// NewMongoConnector returns a connector for uri
func NewMongoConnector(uri string) *MongoConnector {
	return &MongoConnector{
		uri:     uri,
		connect: DialMongo,
		timeout: DefaultConnectTimeout,
	}
}

// WithConnectFunc replaces the dialer
func (c *MongoConnector) WithConnectFunc(fn ConnectFunc) *MongoConnector {
	if fn != nil {
		c.connect = fn
	}
	return c
}

// WithConnectTimeout bounds each connect attempt
func (c *MongoConnector) WithConnectTimeout(timeout time.Duration) *MongoConnector {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

func (c *MongoConnector) WithLogger(logger auth.Logger) *MongoConnector {
	c.logger = logger
	return c
}

// Client returns the shared client, connecting on first use. A caller whose
// ctx ends while the connect is in flight gets ctx.Err() and leaves the
// attempt running for the others.
func (c *MongoConnector) Client(ctx context.Context) (*mongo.Client, error) {
	if client := c.cached(); client != nil {
		return client, nil
	}

	ch := c.group.DoChan("connect", func() (any, error) {
		if client := c.cached(); client != nil {
			return client, nil
		}

		// shared attempt: outlives the first caller, bounded by c.timeout
		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		client, err := c.connect(dialCtx, c.uri)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.client = client
		c.mu.Unlock()

		if c.logger != nil {
			c.logger.Info("mongo connected")
		}
		return client, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryInternal, "failed to connect to database").
			WithTextCode(auth.TextCodeStoreUnavailable)
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		if c.logger != nil {
			c.logger.Error("mongo connect failed", "error", err, "shared", res.Shared)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to connect to database").
			WithTextCode(auth.TextCodeStoreUnavailable)
	}

	return v.(*mongo.Client), nil
}

// Close disconnects the cached client, if any
func (c *MongoConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func (c *MongoConnector) cached() *mongo.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// DialMongo connects to uri and pings the primary so that an unreachable
// server fails the request instead of buffering operations.
func DialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}
