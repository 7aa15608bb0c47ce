// Package replay runs a replay memory as a NATS service.
//
// A Service owns a shared buffer.Synchronized[Observation] and binds it to
// three subjects:
//
//	replay.ingest   observations in, one JSON object or an array
//	replay.sample   request/reply, {"n": 16} → {"items": [...], "len", "capacity", "full"}
//	<batch_subject> optional, a sample of batch_size published every batch_interval
//
// Undecodable observations are counted and dropped. Sample requests larger
// than max_sample_size are answered with {"error": "..."}.
//
// SampleClient is the requesting side of replay.sample.
package replay
