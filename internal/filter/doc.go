// Package filter computes the engine's default pre-fetch verdict. Every
// filter in the chain is evaluated, never short-circuited, so the gate
// callback always sees the full list of contributing reasons.
package filter
