// Package state keeps per-user conversation sessions in memory. Each session
// expires after a period of inactivity, and updates for the same user are
// applied one at a time through Store.Update.
package state
