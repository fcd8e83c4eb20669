// Package core contains the canonical process contracts, value objects and
// orchestration logic: the credential registry, the process registries, the
// dispatcher and the result envelopes. Transport, auth and provider packages
// depend on core; core must not depend on them.
package core
