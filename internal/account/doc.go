// Package account records per-account metadata and channel limits.
package account
