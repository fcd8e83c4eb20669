// Package providers assembles the built-in process and batch providers.
//
// Each provider lives in its own package and follows the fetch, compute and
// write-back template in providers/processkit. Builtins constructs all of
// them against one client and credential registry so a host can register the
// set on a dispatcher in one call.
package providers
