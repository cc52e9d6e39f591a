// Package scheduling contains the synchronization scheduling bounded context:
// recurring Schedules, the Jobs they spawn, and the SyncLogEntry audit trail.
package scheduling
