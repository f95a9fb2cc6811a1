// Package services implements the business logic layer between the HTTP
// handlers and the data pipeline. The DashboardService owns the full
// analysis session: acquire the raw matrix through the memoizing cache,
// run corruption and repair, derive statistics, and shape the response
// DTOs the transport layer renders.
package services
