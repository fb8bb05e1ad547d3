package crypto

// KeySet holds the purpose-bound subkeys expanded from one master key.
// Both slices are owned by the KeySet and must be destroyed with Wipe when
// the session holding them ends.
type KeySet struct {
	// Entry encrypts and decrypts entry fields.
	Entry []byte

	// Verify seals and opens the master-password verification token.
	Verify []byte
}

// NewKeySet expands the master key into the entry and verification subkeys.
// The caller retains ownership of master and should wipe it once the KeySet
// is built.
func NewKeySet(master []byte) (*KeySet, error) {
	entry, err := ExpandKey(master, InfoEntryKey)
	if err != nil {
		return nil, err
	}
	verify, err := ExpandKey(master, InfoVerifyKey)
	if err != nil {
		SecureWipe(entry)
		return nil, err
	}
	return &KeySet{Entry: entry, Verify: verify}, nil
}

// DeriveKeySet derives the master key from a password and expands it in one
// step. The intermediate master key is wiped before returning.
func DeriveKeySet(password, salt []byte, p Params) (*KeySet, error) {
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	master := DeriveKey(password, salt, p)
	defer SecureWipe(master)
	return NewKeySet(master)
}

// Wipe zeroes both subkeys. The KeySet must not be used afterwards.
func (k *KeySet) Wipe() {
	if k == nil {
		return
	}
	SecureWipe(k.Entry)
	SecureWipe(k.Verify)
	k.Entry = nil
	k.Verify = nil
}
