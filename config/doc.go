// Package config loads replay-memory configuration.
//
// A Loader starts from Default(), merges each file layer in order (JSON or
// YAML, chosen by extension), applies REPLAY_* environment overrides and
// optionally validates the result:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Layers only override the keys they contain. Keys ending in _wait,
// _interval, _timeout or duration accept Go duration strings such as "250ms".
//
// # Environment Overrides
//
//	REPLAY_BUFFER_CAPACITY    buffer.capacity
//	REPLAY_NATS_URLS          nats.urls (comma separated)
//	REPLAY_NATS_USERNAME      nats.username
//	REPLAY_NATS_PASSWORD      nats.password
//	REPLAY_NATS_TOKEN         nats.token
//	REPLAY_SERVICE_*_SUBJECT  service.{ingest,sample,batch}_subject
//	REPLAY_SERVICE_BATCH_SIZE service.batch_size
//	REPLAY_METRICS_PORT       metrics.port
//	REPLAY_DEMO_ENABLED       demo.enabled
//
// # TLS
//
// nats.tls enables TLS towards the server, trusting the system roots plus
// ca_files and presenting cert_file/key_file for mTLS. metrics.tls serves the
// metrics endpoint over HTTPS. Both accept min_version "1.2" or "1.3".
//
// Validation errors are classified invalid and match errors.ErrInvalidConfig.
// A missing file matches errors.ErrConfigNotFound.
package config
