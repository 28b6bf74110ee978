// Package task provides single-settlement asynchronous results with listener management,
// a keyed registry that de-duplicates concurrent requests, and a bounded worker pool.
//
// A [Task] never cancels its work. Callers that lose interest detach their listeners with
// [Task.RemoveListener] and [Task.RemoveFailureListener]; the work still runs to completion
// and may populate the [Cache] for later requests.
package task
