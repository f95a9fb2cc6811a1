// Package http exposes the dashboard's REST surface with RFC 7807
// error responses.
//
// Routes are grouped under /api by the application router:
//
//	GET  /api/dashboard          full snapshot for the front page
//	GET  /api/missing            missing-value counts per stage
//	GET  /api/summary            annualized risk/return table
//	GET  /api/describe           descriptive statistics table
//	GET  /api/series/normalized  base-1.0 normalized price series
//	GET  /api/series/{security}  one security's prices plus moving average
//	GET  /api/ranking            securities ordered by total return
//	POST /api/refresh            drop the memoized load and recompute
//	GET  /api/export/xlsx        download every table as a workbook
//
// Handlers never render errors themselves. Every failure goes through
// errors.ErrorHandler so clients always see a problem+json document.
package http
