// Package schedule decides when deliveries happen.
//
// Configured times of day become Entries. Each Entry fires at the start of its jitter
// window (nominal time minus jitter) on the active weekdays; the actual delivery then
// runs after a further uniform random delay in [0, 2*jitter] minutes, so realized
// delivery times are spread evenly around the nominal time.
//
// The Coordinator keeps all armed triggers and pending deliveries on one timeline and
// runs delivery callbacks one at a time.
package schedule
