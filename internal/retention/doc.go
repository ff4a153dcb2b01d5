// Package retention applies channel retention policies on a cron schedule.
// Expired messages are soft-deleted for every recipient; nothing is
// physically removed.
package retention
