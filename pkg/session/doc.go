/*
Package session implements session management and persistence orchestration.

A Manager serializes events per session: it loads the snapshot, hands it to the
dialogue engine and persists the result while holding a local lock and, when
configured, a distributed lock shared across replicas.
*/
package session
