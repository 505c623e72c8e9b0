// Package hook defines the extension contract: seven named callback
// points where operator-supplied logic can override engine decisions.
// Callbacks receive only serializable views of engine state and run
// synchronously under a bounded timeout; a panicking or overrunning
// callback degrades to the engine default with a logged warning.
package hook
