// Package keys derives canonical cache keys from request parameters.
//
// Keys are pure functions of their inputs: semantically identical requests
// always map to the same slot, and any difference in an included field maps
// to a different slot.
package keys
