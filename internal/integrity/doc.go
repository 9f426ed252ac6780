// Package integrity computes and validates SHA-256 checksums over cached
// artifacts. Hashing streams file content so multi-gigabyte media files never
// need to fit in memory. Checksums are computed once at commit time; explicit
// re-validation is an opt-in for callers that distrust the volume.
package integrity
