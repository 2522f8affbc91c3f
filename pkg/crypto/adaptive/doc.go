// Package adaptive wraps the AEAD ciphers used for data at rest.
//
// AES-GCM is chosen where the CPU accelerates AES, ChaCha20-Poly1305
// elsewhere. Ciphertexts carry their random nonce as a prefix, so a
// Cipher is safe for concurrent use with one key.
//
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
