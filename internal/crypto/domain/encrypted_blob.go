package domain

// EncryptedBlob is the persisted form of an authenticated-encryption result.
// Ciphertext, IV, and Tag are stored as separate hex strings so the
// authentication tag can be validated independently of the ciphertext.
type EncryptedBlob struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
}

// KeyPair holds a user's PEM-encoded asymmetric key pair. The private key is
// only ever held transiently; at rest it is stored encrypted under the master
// key.
type KeyPair struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
}
