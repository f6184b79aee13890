// Package handle provides a generation-tagged slot table that gives Go
// objects an integer identity a host runtime can carry between independent
// calls. A Handle packs a kind tag, a slot generation and a slot index into
// a single 64-bit value, so decoding detects released (stale) and forged
// handles instead of trusting a raw bit pattern.
package handle
