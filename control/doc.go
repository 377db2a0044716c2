// Package control implements the remote control channel for worker services.
//
// A Channel binds to exactly one publish/subscribe topic (the service's
// control identity) and drains pending messages without blocking. Payloads
// are UTF-8 text with fields separated by the literal "::" delimiter; the
// first field is the command and the rest are its ordered parameters.
//
// Two commands are built in: "exit" requests loop shutdown and "delay::N"
// updates the loop delay in seconds. Every other command, including the
// empty command produced by a blank payload, is forwarded to a pluggable
// Executor which is expected to reject what it does not know.
//
// The transport behind the channel is abstracted by the Bus interface;
// Redis pub/sub and NATS implementations live in the redisclient and
// natsclient packages.
package control
