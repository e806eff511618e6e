// Package pipeline coordinates a run: a bounded pool fetches every
// generated location, then, once all fetches are in, a second bounded pool
// uploads the files that are available locally.
//
// Fetch and upload failures are recorded per job and never stop the run.
// Only two conditions end a phase early: a cancelled context, after which
// no new job starts, and an *uploader.AuthError, which abandons the rest
// of the upload phase.
package pipeline
