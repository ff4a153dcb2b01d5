// Package channelsvc is the transport-neutral facade used by the HTTP and
// CLI surfaces. Account-scoped calls manage channels and tokens; bearer
// calls read and write messages after resolving the caller's token.
package channelsvc
