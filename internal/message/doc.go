// Package message carries intents from components to the state managers.
//
// Producer side: each component gets one queue manager per family. A queue
// manager runs the same validation as the target manager before enqueuing,
// so a bad call fails inside the component that made it.
//
// Consumer side: exactly one Handler per family replays drained messages
// onto the PRIMARY managers. Handlers re-validate every message and reject
// method names they do not know.
//
// Messages are never persisted. Only their effect on managers is.
package message
