// Package dedupe provides inbound-message deduplication using a time-based
// cache so transport redeliveries are processed at most once.
package dedupe
