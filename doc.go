// Package replaymemory provides a fixed-capacity replay memory: a generic
// circular buffer that overwrites its oldest slot once full and draws uniform
// random samples without replacement, plus a NATS service that shares one
// buffer between producers and learners.
//
// # Layout
//
//	pkg/buffer         CircularBuffer[T], Synchronized[T], statistics and metrics
//	replay             Observation, the NATS ingest/sample service and SampleClient
//	natsclient         NATS connection with circuit breaker and request/reply
//	config             layered JSON/YAML configuration with REPLAY_* overrides
//	metric             Prometheus registry and the /metrics and /health server
//	health             component health aggregation
//	errors             classified errors (transient, invalid, fatal) and retry
//	pkg/tlsutil        TLS configuration for NATS and the metrics server
//	testutil           in-memory NATS mock and observation fixtures
//	cmd/replaymemory   the binary
//
// # Architecture
//
//	 producers                                   learners
//	     │ replay.ingest                 replay.sample │ ▲
//	     ▼                                             ▼ │
//	┌─────────────────────────────────────────────────────────┐
//	│                    replay.Service                        │
//	│   decode → PushItems          Snapshot → Sample(n)       │
//	│              ┌──────────────────────────┐                │
//	│              │ Synchronized[Observation]│ ── batch ──────┼──► replay.batch
//	│              │   CircularBuffer (ring)  │   publisher    │
//	│              └──────────────────────────┘                │
//	└─────────────────────────────────────────────────────────┘
//
// Buffer slots are filled in order until the buffer is full; after that each
// push overwrites the slot at the write cursor, which then advances modulo
// capacity. Get addresses physical slots, not insertion order.
//
// # Running
//
//	# Serve the default subjects against a local NATS server
//	./bin/replay-memory --config configs/replay.yaml
//
//	# Fill a local buffer and log periodic samples, no NATS required
//	./bin/replay-memory --demo --log-format=text
//
//	# Ask a running service for 32 observations
//	./bin/replay-memory --sample=32
package replaymemory
