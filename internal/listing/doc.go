// Package listing implements client-side search and pagination for the
// assistant and report tables.
//
// Search matches a row when the textual form of any of its fields contains
// the query, ignoring case. Changing the query or the dataset returns to
// page 1. Pages hold 10 rows; an empty result has zero pages but is still
// displayed as "page 1 of 1" with both directions disabled.
package listing
