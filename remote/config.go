package remote

import (
	"crypto/tls"
	"time"

	"github.com/wireactor/wireactor/actor"
)

// KindProducer is a named actor template registered for remote spawn
// (spec.md §4.7, glossary "Kind").
type KindProducer = actor.Producer

const (
	defaultBatchSize     = 1024
	defaultMaxRetries    = 3
	defaultRetryTimeSpan = 500 * time.Millisecond
)

// Config holds everything an endpoint needs to dial, retry, and batch
// towards a peer, plus the kinds this node accepts remote spawns for.
type Config struct {
	TLSConfig *tls.Config
	BuffSize  int

	// AdvertisedHost/AdvertisedPort are reported to peers in the
	// Connect handshake instead of the listen address when set, letting a node
	// sit behind a NAT or load balancer (spec.md §6).
	AdvertisedHost string
	AdvertisedPort int

	BatchSize     int
	MaxRetries    int
	RetryTimeSpan time.Duration
	RetryBackOff  func(attempt int, base time.Duration) time.Duration

	RemoteKinds map[string]KindProducer
}

// NewConfig returns a Config with the teacher's defaults: no TLS, the
// drpc package's own read-buffer default, and spec.md §6's retry
// policy.
func NewConfig() Config {
	return Config{
		BatchSize:     defaultBatchSize,
		MaxRetries:    defaultMaxRetries,
		RetryTimeSpan: defaultRetryTimeSpan,
		RetryBackOff:  exponentialBackOff,
		RemoteKinds:   make(map[string]KindProducer),
	}
}

// exponentialBackOff doubles the delay on every attempt: base*2 for
// attempt 1, base*4 for attempt 2, base*8 for attempt 3, and so on
// (SPEC_FULL supplemented feature #2).
func exponentialBackOff(attempt int, base time.Duration) time.Duration {
	return base * time.Duration(1<<attempt)
}

// WithTLS sets the remote's TLS config, switching its transport to TLS.
func (c Config) WithTLS(tlsconf *tls.Config) Config {
	c.TLSConfig = tlsconf
	return c
}

// WithBufferSize sets the stream reader's buffer size. If unset, the
// default is whatever storj.io/drpc defines (4MB).
func (c Config) WithBufferSize(size int) Config {
	c.BuffSize = size
	return c
}

// WithAdvertisedAddress sets the host/port this node reports to peers,
// independent of the address it actually listens on.
func (c Config) WithAdvertisedAddress(host string, port int) Config {
	c.AdvertisedHost = host
	c.AdvertisedPort = port
	return c
}

// WithBatchSize sets the max number of user messages coalesced into one
// wire frame (spec.md §4.2/§4.3).
func (c Config) WithBatchSize(n int) Config {
	c.BatchSize = n
	return c
}

// WithRetryPolicy sets the dial retry budget and backoff step function
// for every endpoint writer this remote creates.
func (c Config) WithRetryPolicy(maxRetries int, retryTimeSpan time.Duration, backOff func(int, time.Duration) time.Duration) Config {
	c.MaxRetries = maxRetries
	c.RetryTimeSpan = retryTimeSpan
	c.RetryBackOff = backOff
	return c
}

// WithRemoteKind registers a named actor template remote spawn requests
// for kind may create (spec.md §4.7).
func (c Config) WithRemoteKind(kind string, producer KindProducer) Config {
	if c.RemoteKinds == nil {
		c.RemoteKinds = make(map[string]KindProducer)
	}
	c.RemoteKinds[kind] = producer
	return c
}
