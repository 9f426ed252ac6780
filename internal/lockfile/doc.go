// Package lockfile provides cross-process advisory locking per
// (namespace, key) for independently launched dvdmaker instances sharing one
// cache root.
//
// Two strategies are available. The default wraps native flock(2) via
// github.com/gofrs/flock: the kernel releases the lock automatically when the
// holder dies, so no reclamation logic is needed. On filesystems without
// working flock (some network mounts) the heartbeat strategy creates the lock
// file exclusively and refreshes an owner record inside it while held; a
// waiter that observes a heartbeat older than the stale timeout may forcibly
// reclaim the lock. Reclamation trades strict safety for liveness and never
// happens before the timeout elapses.
//
// At most one holder of a given (namespace, key) lock exists at a time across
// all cooperating processes, modulo that explicit stale-reclaim escape hatch.
package lockfile
