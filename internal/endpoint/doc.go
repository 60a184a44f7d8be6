// Package endpoint holds the static set of backend endpoints and the last known
// health classification of each one. The set is fixed at construction; health
// changes reclassify an endpoint but never remove it.
package endpoint
