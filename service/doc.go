// Package service is the only write path into the book. It reads feed
// lines, numbers and journals them, hands them to the feed handler, and
// fans emitted quotes out to the output stream, the outbox and Kafka.
package service
