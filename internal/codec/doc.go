// Package codec provides the value encodings used by the ledger.
//
// JSON columns (entity payloads, run and session configuration, log data)
// are written as RFC 8785 canonical JSON: object keys sorted, no insignificant
// whitespace, numbers in their shortest round-trip form. Integers are the
// exception: they keep every digit, so ids beyond 2^53 survive. Identical values
// therefore always produce identical column text, which keeps dumps and golden
// snapshots stable.
//
// Binary array attachments use the ArrayCodec interface. BinaryArrays is the
// default implementation.
package codec
