// Package profile implements the zone confirmation profiles: pure
// predicates deciding whether a zone's accumulated evidence qualifies,
// independent of all other engine state.
package profile
