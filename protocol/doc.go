package protocol

// This package implements encoding commands for, and parsing replies from,
// the beanstalkd work queue protocol.
//
// The protocol is
//
// - text based, every line is `\r\n` terminated
// - strictly request/response, one outstanding command per connection
// - length prefixed wherever raw bytes are carried
//
// - `Command` - A client instruction to beanstalkd.
// - `Response` - A status line and, for some statuses, a body.
// - `Error` - A reply whose status is not a success for the command sent.
// - `Stats` - The decoded YAML payload of an `OK` reply.
//
// === General Syntax
//
// - command verbs are lowercase, e.g. `put`, `reserve`
// - reply statuses are uppercase, e.g. `INSERTED`, `NOT_FOUND`
// - integers are plain decimal, without sign or leading zeros
// - tube names are at most 200 bytes and never contain whitespace
//
// === Commands carrying a body
//
// Only put sends raw bytes. The body length is the last argument of the
// command line and the body follows on its own line.
//
//  ```
//    > put <pri> <delay> <ttr> <bytes>\r\n
//    > <body>\r\n
//    < INSERTED <id>\r\n
//  ```
//
// === Replies carrying a body
//
// RESERVED, FOUND and OK declare the body length as their last field. The
// body is read with an exact length read, so it may contain any byte,
// including `\r\n`.
//
//  ```
//    > reserve\r\n
//    < RESERVED <id> <bytes>\r\n
//    < <body>\r\n
//  ```
//
// === Statistics
//
// stats, stats-job, stats-tube, list-tubes and list-tubes-watched reply with
// `OK <bytes>` and a YAML document that is either a flat list or a flat
// mapping of scalars. DecodeStats understands exactly that subset and
// nothing more.
//
//  ```
//    > stats-tube default\r\n
//    < OK 42\r\n
//    < ---\nname: default\ncurrent-jobs-urgent: 0\n...\r\n
//  ```
//
// === Error replies
//
// Failure statuses such as `NOT_FOUND` or `TIMED_OUT` are returned as
// *Error. Its Unwrap gives a sentinel so callers can write
//
//	if errors.Is(err, protocol.ErrTimedOut) { ... }
//
// A status token outside the vocabulary is also an *Error, carrying the
// token verbatim and unwrapping to ErrUnexpectedStatus.
//
