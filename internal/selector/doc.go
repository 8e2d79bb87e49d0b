// Package selector draws items from fixed pools without repetition.
//
// A Selector shuffles its pool, hands items out one at a time and only reshuffles once
// every item was drawn. Progress is written to a storage.Store after every mutation, so
// a cycle survives restarts. A Registry keeps one Selector per pool key and shares a
// single state record between them.
package selector
