// rolecreds
//
// Caches temporary AWS credentials for a single assumed role.
//
// A Provider holds at most one credential set and serves it to any number
// of concurrent callers until its remaining lifetime drops to the
// configured reload-before window, at which point the next caller triggers
// a single shared AssumeRole call to STS.
package rolecreds
