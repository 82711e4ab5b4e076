package mpc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"

	"github.com/vultforge/core/internal/coreerr"
)

// sealMessage encrypts a protocol message body under the session's
// hex_encryption_key with a random 12-byte nonce prepended to the
// ciphertext, grounded on the same AES-GCM convention the teacher's
// `internal/vault/parser.go` uses for vault-at-rest encryption
// (§4.5.3: "a per-message random 12-byte nonce prepended to the
// ciphertext").
func sealMessage(hexKey string, plaintext []byte) ([]byte, error) {
	gcm, err := gcmFromHexKey(hexKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolErr, err, "generating message nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// openMessage is sealMessage's inverse. The relay is untrusted
// transport (§4.5.3): it cannot produce a body that opens successfully
// without the session key, so a failure here means either a relay bug
// or a peer speaking a different session's key — either way it is
// surfaced as ProtocolErr rather than retried.
func openMessage(hexKey string, sealed []byte) ([]byte, error) {
	gcm, err := gcmFromHexKey(hexKey)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, coreerr.New(coreerr.ProtocolErr, "sealed message shorter than nonce")
	}
	nonce, body := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolErr, err, "opening sealed message")
	}
	return plaintext, nil
}

func gcmFromHexKey(hexKey string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.MalformedPayload, err, "decoding hex_encryption_key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.MalformedPayload, err, "creating AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.MalformedPayload, err, "creating GCM")
	}
	return gcm, nil
}
