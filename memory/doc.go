// Package memory provides the allocation-side collaborators of the hazard
// substrate: a typed object pool used as the reclaim target, and an SPSC
// ring for handing retired objects from a mutator to a dedicated reclaimer.
package memory
