// Package summary defines the domain model shared by the summarizer service:
// summary records and their lifecycle, the error kinds a summarization task
// distinguishes, and the interfaces implemented by stores, fetchers,
// providers, and queues.
//
// A record moves forward only:
//
//	pending -> processing -> completed
//	                      \-> failed
//
// A pending record may also move straight to failed when its task cannot
// start cleanly. Completed and failed are terminal.
package summary
