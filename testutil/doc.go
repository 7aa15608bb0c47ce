// Package testutil provides test helpers for replay-memory packages.
//
// MockNATSClient is an in-memory transport with the same Subscribe,
// HandleRequest, Publish and Request methods as natsclient.Client, so the
// replay service can be tested without a NATS server:
//
//	client := testutil.NewMockNATSClient()
//	svc, _ := replay.NewService(cfg, buf, client)
//	_ = svc.Start(ctx)
//
//	_ = client.Publish(ctx, "replay.ingest", testutil.ObservationJSON("sensor", 1))
//	resp, _ := client.Request(ctx, "replay.sample", []byte(`{"n": 1}`))
//
// The data helpers generate observations in their JSON wire form.
package testutil
