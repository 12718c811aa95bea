/*
Package gatecrypt encrypts text payloads with a key derived from a password, producing ciphertext that a StatiCrypt
password gate can decrypt in the browser.

# How it works:

A Key is derived from a Password and a persisted Salt with three chained PBKDF2 passes (see DefaultStages).
The hex text output of each pass is used as the password of the next one, and the salt is always used as its hex text.
This is how StatiCrypt hashes passwords, so the resulting Key is the same value the gate keeps in the browser's local storage.

The Key and the plaintext are passed to Encrypt, which generates a random IV and encrypts the payload with AES-256-CBC.
The result is an Artifact, which is just hex(IV) followed by hex(ciphertext).
Decrypt splits the IV back off and reverses the process.

# General guidelines:
  - The Salt must be generated once and reused for every derivation, otherwise previously encrypted payloads can't be recovered.
  - Don't change DefaultStages. Any change to the iteration counts, hash functions, or the way intermediate output is passed between passes produces a different key without any error.
  - The Artifact format carries no authentication tag. A wrong key or corrupted payload will usually fail on padding, but may decrypt to garbage. Always validate the structure of the decrypted text.
  - Adding a MAC would make payloads unreadable by the gate, so that weakness is accepted here.
*/
package gatecrypt
