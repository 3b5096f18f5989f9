// Package search writes service documents to an Elasticsearch-compatible
// index over its REST API. Only document writes are supported; querying the
// index is left to other consumers.
package search
