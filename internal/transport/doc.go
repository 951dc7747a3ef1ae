// Package transport defines the capability interface the gateway consumes
// from a messaging-session library: lifecycle events, pairing material,
// inbound messages, and an outbound send primitive.
package transport
