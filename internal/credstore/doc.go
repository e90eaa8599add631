// credstore
//
// Persists the last issued credential set for a role between CLI
// invocations: the secret material lives in the OS keyring behind a file
// lock, while an ini registry tracks which roles have entries so they can
// all be cleared later.
package credstore
