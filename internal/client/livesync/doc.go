// Package livesync keeps local in-memory projections of remote entity
// collections consistent with the store they came from.
//
// A View combines an initial bulk load, an open change-feed subscription,
// and a refetch scheduler: any notification matching the view's filter
// triggers a full refetch of the filtered collection, with overlapping
// notifications coalesced into at most one trailing refetch. A Counter does
// the same for a server-side count instead of a row set. A Toggle applies a
// like-style mutation optimistically and reconciles it against the server's
// answer.
//
// Each View or Counter is owned by exactly one scope (a mounted screen) and
// must be closed when that scope deactivates; results of fetches that
// resolve after Close are discarded.
package livesync
