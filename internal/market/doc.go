// Package market acquires the raw price matrix the analysis pipeline runs on.
//
// It defines the Security and PriceMatrix types shared by the rest of the
// application and implements the matrix acquirer: a client for the Yahoo
// Finance v8 chart API that fetches daily adjusted-close prices for a fixed
// universe of securities and assembles them into a single date-by-security
// matrix keyed by display label.
//
// Missing cells are represented as NaN throughout; use IsMissing rather than
// comparing against math.NaN directly.
package market
