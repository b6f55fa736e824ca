// Package hazard implements hazard-pointer safe memory reclamation for
// lock-free data structures. Readers announce the address they are about to
// dereference in a claimed announcement slot; a writer retires unlinked
// objects into a Domain, which frees them only once no slot announces their
// address.
//
// The substrate is lock-free: slot claims are CAS-only, announcements are
// single atomic stores, and reclamation scans are read-only sweeps over the
// slot array. The one mutex in the package guards worker-shutdown hand-off
// of retire buffers, which sits on no hot path.
package hazard
