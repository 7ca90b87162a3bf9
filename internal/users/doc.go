// Package users holds the user record type and the in-memory store that
// owns the collection and its id counter.
package users
