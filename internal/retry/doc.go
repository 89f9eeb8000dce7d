// Package retry provides the bounded retry executor every remote call goes through.
//
// [Do] calls an operation up to a fixed number of attempts, sleeping a
// [BackoffFunc] delay between failures and never after the last one. It does
// not look at error content: the only errors it treats specially are operator
// interrupts and broken pipes, which end the loop with [ErrAborted] instead
// of being retried, and errors an operation marked with [Fatal], which are
// returned without another attempt.
package retry
