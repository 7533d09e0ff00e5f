// Package crypto implements the encryption service consumed by the
// preference injector for string-valued secrets.
//
// Values are sealed with AES-256-GCM under keys derived from a
// configured passphrase (PBKDF2 for the master key, HKDF with a random
// per-value salt for value keys). Ciphertexts carry the fixed "ENC$1$"
// marker so the injector can recognize encrypted values without
// attempting a decrypt.
//
// Key management is passphrase-based only; there is no rotation, KMS,
// or hardware-backed storage. Do not treat this as a production secret
// store.
package crypto
