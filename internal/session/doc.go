// Package session implements the per-client execution core of the load
// generator: each Session drives one simulated client through a scenario, a
// statically declared graph of sequences made of steps. The engine keeps a
// fixed-capacity pool of sequence instances, tracks live (sequence, index)
// slots in a bitset, and advances runnable sequences round-robin on a
// single-threaded executor, so the hot path allocates nothing and needs no
// locks.
package session
