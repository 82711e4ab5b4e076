package vaultcore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	v1 "github.com/vultisig/commondata/go/vultisig/vault/v1"
	"google.golang.org/protobuf/proto"
)

// FileStore is a reference VaultStore backed by in-memory
// base64-encoded `.vult` container bytes, grounded on the teacher's
// `internal/vault/parser.go` container parsing and AES-GCM decryption
// (generalized here: the teacher reads containers from disk and
// decodes them as a side effect of parsing; FileStore separates
// "register container bytes" from "load"/"unlock" so the MPC engine
// can depend on VaultStore without touching the filesystem directly).
// It is explicitly NOT a hardened production vault format handler
// (§9 Non-goals) — no path traversal checks, no interactive password
// prompt, no file-system access at all.
type FileStore struct {
	mu         sync.RWMutex
	containers map[string]*v1.VaultContainer
}

// NewFileStore returns an empty reference store.
func NewFileStore() *FileStore {
	return &FileStore{containers: make(map[string]*v1.VaultContainer)}
}

// Register decodes a base64-encoded `.vult` container (the on-disk
// format the teacher's ParseVaultFile reads) and makes it loadable by
// the vault's id once decrypted. Unencrypted vaults are indexed
// immediately; encrypted ones are indexed lazily on first successful
// Unlock, since the id (the ECDSA root key) isn't known until then.
func (s *FileStore) Register(base64Container string) error {
	raw, err := base64.StdEncoding.DecodeString(base64Container)
	if err != nil {
		return fmt.Errorf("decoding vault container: %w", err)
	}
	var container v1.VaultContainer
	if err := proto.Unmarshal(raw, &container); err != nil {
		return fmt.Errorf("unmarshalling vault container: %w", err)
	}

	if !container.IsEncrypted {
		vault, err := decodeUnencryptedVault(&container)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.containers[vault.VaultID()] = &container
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.containers["pending:"+container.Vault] = &container
	s.mu.Unlock()
	return nil
}

// Load implements VaultStore. For FileStore, Load succeeds only for
// unencrypted containers. For an encrypted container it returns an
// error, also after a successful Unlock has re-indexed the container
// under the vault's real id; the decrypted vault is only returned by
// Unlock.
func (s *FileStore) Load(id string) (*Vault, error) {
	s.mu.RLock()
	container, ok := s.containers[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errVaultNotFound(id)
	}
	if !container.IsEncrypted {
		return decodeUnencryptedVault(container)
	}
	return nil, fmt.Errorf("vault %q is encrypted; call Unlock first", id)
}

// Unlock implements VaultStore, decrypting the container's AES-GCM
// payload under sha256(password) exactly as the teacher's decryptAES
// does, then re-indexing the container under the vault's real id.
func (s *FileStore) Unlock(id, password string) (*UnlockedVault, error) {
	s.mu.RLock()
	container, ok := s.containers[id]
	if !ok {
		container, ok = s.containers["pending:"+id]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, errVaultNotFound(id)
	}

	if !container.IsEncrypted {
		v, err := decodeUnencryptedVault(container)
		if err != nil {
			return nil, err
		}
		return &UnlockedVault{Vault: v}, nil
	}

	key := sha256.Sum256([]byte(password))
	plaintext, err := decryptAESGCM(container.Vault, key[:])
	if err != nil {
		return nil, fmt.Errorf("decrypting vault: %w", err)
	}

	var pv v1.Vault
	if err := proto.Unmarshal(plaintext, &pv); err != nil {
		return nil, fmt.Errorf("unmarshalling decrypted vault: %w", err)
	}
	v := vaultFromProto(&pv)

	s.mu.Lock()
	delete(s.containers, "pending:"+container.Vault)
	s.containers[v.VaultID()] = container
	s.mu.Unlock()

	return &UnlockedVault{Vault: v}, nil
}

// RegisterAndUnlock is a convenience wrapper over Register+Unlock for a
// caller that holds exactly one container and doesn't need to look it
// up by id again later (e.g. a CLI given a single vault file): it skips
// the "pending:" indirection Register uses for multi-container stores.
func (s *FileStore) RegisterAndUnlock(base64Container, password string) (*Vault, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Container)
	if err != nil {
		return nil, fmt.Errorf("decoding vault container: %w", err)
	}
	var container v1.VaultContainer
	if err := proto.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("unmarshalling vault container: %w", err)
	}

	if !container.IsEncrypted {
		v, err := decodeUnencryptedVault(&container)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.containers[v.VaultID()] = &container
		s.mu.Unlock()
		return v, nil
	}

	key := sha256.Sum256([]byte(password))
	plaintext, err := decryptAESGCM(container.Vault, key[:])
	if err != nil {
		return nil, fmt.Errorf("decrypting vault: %w", err)
	}
	var pv v1.Vault
	if err := proto.Unmarshal(plaintext, &pv); err != nil {
		return nil, fmt.Errorf("unmarshalling decrypted vault: %w", err)
	}
	v := vaultFromProto(&pv)

	s.mu.Lock()
	s.containers[v.VaultID()] = &container
	s.mu.Unlock()
	return v, nil
}

// decryptAESGCM mirrors the teacher's decryptAES: base64-decode, split
// the leading 12-byte nonce, AES-GCM open. Ground truth for the wire
// shape is §4.5.3: "a per-message random 12-byte nonce prepended to
// the ciphertext" — the same convention the vault container itself
// uses for its own at-rest encryption.
func decryptAESGCM(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("opening GCM seal: %w", err)
	}
	return plaintext, nil
}

// encryptAESGCM is the inverse of decryptAESGCM, following the same
// "12-byte random nonce prepended to ciphertext" convention. Only this
// package's tests call it; the MPC relay client seals its protocol
// messages with its own sealMessage in internal/mpc/crypto.go.
func encryptAESGCM(plaintext, key []byte, randSource func([]byte) error) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if err := randSource(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decodeUnencryptedVault(container *v1.VaultContainer) (*Vault, error) {
	raw, err := base64.StdEncoding.DecodeString(container.Vault)
	if err != nil {
		return nil, fmt.Errorf("decoding vault payload: %w", err)
	}
	var pv v1.Vault
	if err := proto.Unmarshal(raw, &pv); err != nil {
		return nil, fmt.Errorf("unmarshalling vault: %w", err)
	}
	return vaultFromProto(&pv), nil
}

func vaultFromProto(pv *v1.Vault) *Vault {
	v := &Vault{
		Name: pv.Name,
		PublicKeys: PublicKeys{
			ECDSA: pv.PublicKeyEcdsa,
			EdDSA: pv.PublicKeyEddsa,
		},
		HexChainCode: pv.HexChainCode,
		Signers:      append([]string{}, pv.Signers...),
		LocalPartyID: pv.LocalPartyId,
		LibType:      libTypeFromProto(pv),
		Threshold:    thresholdFromSigners(pv.Signers),
	}
	if pv.CreatedAt != nil {
		v.CreatedAtUnix = pv.CreatedAt.GetSeconds()
	}
	for _, ks := range pv.KeyShares {
		if ks.PublicKey == pv.PublicKeyEddsa {
			v.KeyShares.EdDSA = []byte(ks.Keyshare)
		} else {
			v.KeyShares.ECDSA = []byte(ks.Keyshare)
		}
	}
	return v
}

// libTypeFromProto mirrors the teacher's CheckIfDKLSVault heuristic
// (tss_recovery.go): DKLS key shares are protobuf-serialized
// structures while GG20 key shares are JSON. A key share whose first
// byte is '{' marks the vault GG20-legacy; every non-empty share is
// checked, not only the ECDSA one, and leading whitespace is not
// skipped. This is the same cheap signal the teacher's detector uses
// before falling back to full parse attempts.
func libTypeFromProto(pv *v1.Vault) LibType {
	for _, ks := range pv.KeyShares {
		if len(ks.Keyshare) == 0 {
			continue
		}
		if ks.Keyshare[0] == '{' {
			return LibGG20Legacy
		}
	}
	return LibDKLS
}

func thresholdFromSigners(signers []string) int {
	// The vault container doesn't carry an explicit threshold field in
	// the commondata schema this module targets; the teacher likewise
	// never surfaces one. A 2-of-N convention (fast-vault default, §4.5.5)
	// is assumed here and expected to be overridden by callers that know
	// their ceremony's real threshold.
	if len(signers) < 2 {
		return len(signers)
	}
	return 2
}
