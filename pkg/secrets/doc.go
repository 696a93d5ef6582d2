// Package secrets encrypts credential values before they reach durable storage.
//
// A Sealer derives an AES-256-GCM key from a 32 byte master key with
// HKDF-SHA256 (golang.org/x/crypto/hkdf); the namespace is mixed into the HKDF
// info so two stores sharing a master key never share a data key. The storage
// key of each value is passed as additional authenticated data, which prevents
// swapping ciphertexts between entries.
//
//	key, _ := secrets.GenerateKey()
//	sealer, err := secrets.NewSealer(key, "@stockly")
//	ct, err := sealer.SealString("eyJhbGciOi...", "@stockly/access_token")
//	pt, err := sealer.OpenString(ct, "@stockly/access_token")
package secrets
