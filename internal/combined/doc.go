// Package combined provides interaction benchmarks that test multiple
// components together.
//
// These benchmarks are more representative of real-world use than the
// per-package ones: a request path that nudges a queue, a consumer
// that drains it and ticks a gate, and hot loops that check a stop
// flag and a gate on every iteration.
package combined
