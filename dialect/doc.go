// Package dialect groups the placeholder dialects supported by simpledb.
// Each sub-package exports a single Dialect value that can be handed to
// simpledb.WithDialect.
package dialect
