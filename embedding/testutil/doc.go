// Package testutil provides test doubles for the embedding package.
package testutil
