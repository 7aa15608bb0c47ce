// Package health tracks component health for the replay-memory process.
//
// A Status is healthy, degraded or unhealthy. A Monitor holds pushed statuses
// and registered checks; AggregateHealth evaluates every check and combines the
// results: any unhealthy component makes the process unhealthy, otherwise any
// degraded component makes it degraded.
//
//	monitor := health.NewMonitor()
//	monitor.Register("replay", svc.Health)
//	monitor.Register("nats", func() health.Status {
//	    if client.IsHealthy() {
//	        return health.NewHealthy("nats", "connected")
//	    }
//	    return health.NewUnhealthy("nats", client.Status().String())
//	})
//	status := monitor.AggregateHealth("replay-memory")
//
// Messages built with FromError are sanitized: URLs, file paths, IP addresses,
// ports and credentials are replaced with placeholders before they can reach
// the /health endpoint.
package health
