// Package buildwire is the host side of a request/response channel to an
// external build/transform worker process. It frames packets over the
// worker's byte streams, correlates responses with unique identifiers,
// answers the worker's own requests back to host-registered plugin
// callbacks, and translates build and transform calls into single
// request/response exchanges.
package buildwire
