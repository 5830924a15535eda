package model

import "time"

// ActivityLog models a row in the append-only `activity_logs` table.
// Entries are immutable once written; the only deletion path is the
// cascading delete of the owning user.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the entry.
//  Activity  – free-text activity label (e.g. "User logged in").
//  Details   – optional JSON-encoded structured details.
//  IPAddress – origin address of the request, if known.
//  UserAgent – client agent string, if known.
//  CreatedAt – timestamp of creation.
type ActivityLog struct {
    ID        uint64    // activity_logs.id
    UserID    uint64    // activity_logs.user_id
    Activity  string    // activity_logs.activity
    Details   string    // activity_logs.details (nullable)
    IPAddress string    // activity_logs.ip_address (nullable)
    UserAgent string    // activity_logs.user_agent (nullable)
    CreatedAt time.Time // activity_logs.created_at
}
