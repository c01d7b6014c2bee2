// Package testdoubles provides spies for the engine's observability interfaces and a fake
// execution service for lifecycle tests that need no database.
package testdoubles
