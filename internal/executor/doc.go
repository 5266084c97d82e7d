// Package executor runs named CPU-bound tasks on a single event loop and
// reports their progress and results as responses to a Sink.
//
// Hosts call Submit from any goroutine. Every handler runs on the loop, one
// at a time; simulateWork alone is split into timer-driven steps so other
// requests run between them. Each accepted request produces zero or more
// progress responses followed by exactly one success or error response.
package executor
