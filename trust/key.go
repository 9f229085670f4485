package trust

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mamba-org/go-trust/edsign"
	"github.com/mamba-org/go-trust/hex"
)

// Key is a single public key entry from a root role's key table. keyval
// is kept verbatim as parsed (not re-encoded), matching spec.md's data
// model note that an implementation must not normalize the hex casing
// of a key it did not generate itself.
type Key struct {
	KeyType string `json:"keytype"`
	Scheme  string `json:"scheme"`
	KeyVal  string `json:"keyval"`
}

// NewKey validates keyval against the engine's one supported key shape
// (64 hex chars, i.e. a raw 32-byte Ed25519 public key) and returns a Key.
func NewKey(keytype, scheme, keyval string) (Key, error) {
	if len(keyval) != edsign.KeySizeHex {
		return Key{}, ErrRoleMetadata{Msg: fmt.Sprintf("key.keyval must be %d hex characters, got %d", edsign.KeySizeHex, len(keyval))}
	}
	if _, err := hex.HexToBinStrict(keyval); err != nil {
		return Key{}, ErrRoleMetadata{Msg: fmt.Sprintf("key.keyval is not valid hex: %v", err)}
	}
	return Key{KeyType: keytype, Scheme: scheme, KeyVal: keyval}, nil
}

// KeyFromEd25519Hex synthesizes a v1-shaped Key for a v0.6 pubkey, which
// carries no keytype/scheme of its own — the v0.6 dialect assumes
// Ed25519 throughout, so the synthesized key always declares it.
func KeyFromEd25519Hex(pkHex string) (Key, error) {
	return NewKey("ed25519", "ed25519", pkHex)
}

// UnmarshalJSON validates keyval at parse time rather than deferring to
// first use, so a malformed key table fails during Load, not later
// during signature checking.
func (k *Key) UnmarshalJSON(data []byte) error {
	var alias struct {
		KeyType string `json:"keytype"`
		Scheme  string `json:"scheme"`
		KeyVal  string `json:"keyval"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	key, err := NewKey(alias.KeyType, alias.Scheme, alias.KeyVal)
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// RoleKeys is a v1 root role entry: the keyids authorized for a role and
// the signature threshold required of them.
type RoleKeys struct {
	KeyIDs    []string `json:"keyids"`
	Threshold uint     `json:"threshold"`
}

// RolePubKeys is a v0.6 delegation entry: raw pubkeys (which double as
// their own keyids) and a threshold.
type RolePubKeys struct {
	PubKeys   []string `json:"pubkeys"`
	Threshold uint     `json:"threshold"`
}

// ToRoleKeys projects a v0.6 delegation onto the v1 shape, used when
// synthesizing a v1-equivalent signable from a v0.6 root (spec.md §4.6).
func (r RolePubKeys) ToRoleKeys() RoleKeys {
	keyids := make([]string, len(r.PubKeys))
	copy(keyids, r.PubKeys)
	return RoleKeys{KeyIDs: keyids, Threshold: r.Threshold}
}

// RoleSignature is one entry of a metadata envelope's "signatures": a
// keyid and its hex-encoded detached signature.
type RoleSignature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

// RoleFullKeys is the materialized keyring for a role: the full Key
// value for each authorized keyid, plus the threshold.
type RoleFullKeys struct {
	Keys      map[string]Key
	Threshold uint
}

// SignatureSet is a deduplicated, keyid-sorted collection of signatures.
// Deterministic ordering matters here: spec.md §4.7 requires threshold
// checking to iterate signatures in a fixed order so that early-exit at
// threshold is itself deterministic, not dependent on map iteration
// order or wire order.
type SignatureSet []RoleSignature

// NewSignatureSet deduplicates sigs by keyid (last one wins on a
// duplicate keyid, matching set semantics over a list) and sorts the
// result by keyid.
func NewSignatureSet(sigs []RoleSignature) SignatureSet {
	byKeyID := make(map[string]RoleSignature, len(sigs))
	for _, s := range sigs {
		byKeyID[s.KeyID] = s
	}
	out := make(SignatureSet, 0, len(byKeyID))
	for _, s := range byKeyID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out
}
