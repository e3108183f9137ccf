// Package classify holds the pure mapping logic behind the deal viewers:
// consultation status to marker color, feature attributes to display rows,
// and a country selection to a CQL filter expression.
//
// Every value in this package is immutable once built and every function is
// free of I/O, so a single Style can be shared by all request handlers.
package classify
