// Package app wires configuration, the market client, the missing-data
// pipeline, analytics and the HTTP transport into a runnable server.
package app
