// Package tag exposes build tags as constants.
package tag
