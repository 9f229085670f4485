package trust

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"

	"github.com/mamba-org/go-trust/edsign"
	"github.com/mamba-org/go-trust/hex"
)

// RootRoleV06 is the legacy v0.6 dialect of root metadata: exactly two
// named delegations, "root" and "key_mgr", each a pubkey list plus a
// threshold, matching validate.cpp's v06::RootRole.
type RootRoleV06 struct {
	RoleBase
	Delegations map[string]RolePubKeys
}

// Base satisfies the RootRole interface.
func (r *RootRoleV06) Base() RoleBase { return r.RoleBase }

type rootV06Signed struct {
	Type                string                 `json:"type"`
	MetadataSpecVersion string                 `json:"metadata_spec_version"`
	Version             uint64                 `json:"version"`
	Delegations         map[string]RolePubKeys `json:"delegations"`
}

// LoadRootV06 parses and structurally validates data as a v0.6 root
// metadata document. Like LoadRootV1, it performs no signature checks.
func LoadRootV06(data []byte) (*RootRoleV06, error) {
	signedRaw, _, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}
	var signed rootV06Signed
	if err := json.Unmarshal(signedRaw, &signed); err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("invalid v0.6 root metadata: %v", err)}
	}
	if signed.Type != "root" {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf(`expected type "root", got %q`, signed.Type)}
	}
	if !strings.HasPrefix(signed.MetadataSpecVersion, "0.6.") {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf(`v0.6 root metadata must have a metadata_spec_version starting with "0.6.", got %q`, signed.MetadataSpecVersion)}
	}

	if len(signed.Delegations) != 2 {
		return nil, ErrRoleMetadata{Msg: "v0.6 root metadata must declare exactly the delegations {root, key_mgr}"}
	}
	for _, name := range []string{"root", "key_mgr"} {
		d, ok := signed.Delegations[name]
		if !ok {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("v0.6 root metadata is missing the %q delegation", name)}
		}
		if len(d.PubKeys) == 0 {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("delegation %q must declare at least one pubkey", name)}
		}
		if d.Threshold < 1 {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("delegation %q must declare a threshold of at least 1", name)}
		}
		for _, pk := range d.PubKeys {
			if len(pk) != edsign.KeySizeHex {
				return nil, ErrRoleMetadata{Msg: fmt.Sprintf("delegation %q pubkey %q is not %d hex characters", name, pk, edsign.KeySizeHex)}
			}
			if _, err := hex.HexToBinStrict(pk); err != nil {
				return nil, ErrRoleMetadata{Msg: fmt.Sprintf("delegation %q pubkey %q is not valid hex: %v", name, pk, err)}
			}
		}
	}

	return &RootRoleV06{
		RoleBase:    RoleBase{Type: signed.Type, SpecVersion: signed.MetadataSpecVersion, Version: signed.Version, Ext: "json"},
		Delegations: signed.Delegations,
	}, nil
}

// Keys materializes the "root" and "key_mgr" keyrings. Each v0.6 pubkey
// is synthesized into an Ed25519 Key and keyed by itself, since v0.6
// pubkeys double as their own keyids.
func (r *RootRoleV06) Keys() map[string]RoleFullKeys {
	out := make(map[string]RoleFullKeys, len(r.Delegations))
	for name, d := range r.Delegations {
		keys := make(map[string]Key, len(d.PubKeys))
		for _, pk := range d.PubKeys {
			key, err := KeyFromEd25519Hex(pk)
			if err != nil {
				// Already validated in LoadRootV06; unreachable in
				// practice, but skip rather than panic if it ever isn't.
				continue
			}
			keys[pk] = key
		}
		out[name] = RoleFullKeys{Keys: keys, Threshold: d.Threshold}
	}
	return out
}

// UpgradedSignable synthesizes the v1-equivalent "signed" document for
// this v0.6 root, per spec.md §4.6: "root" carries over the "root"
// delegation, "targets" carries over "key_mgr", and "snapshot"/
// "timestamp" are declared with empty keyid lists (v0.6 had no
// equivalent roles for them) so the synthesized document still
// satisfies the v1 mandatory-role-set shape for tooling that consumes
// it. The result is returned as a plain JSON-able map rather than a
// *RootRoleV1 because it is not itself a trusted root — it exists only
// to be canonicalized and signed when authoring an actual v0.6-to-v1
// upgrade.
func (r *RootRoleV06) UpgradedSignable() (map[string]interface{}, error) {
	rootDeleg, ok := r.Delegations["root"]
	if !ok {
		return nil, ErrRoleMetadata{Msg: "v0.6 root metadata missing 'root' delegation"}
	}
	keyMgrDeleg, ok := r.Delegations["key_mgr"]
	if !ok {
		return nil, ErrRoleMetadata{Msg: "v0.6 root metadata missing 'key_mgr' delegation"}
	}

	allKeys := r.Keys()
	keys := make(map[string]Key, len(allKeys["root"].Keys)+len(allKeys["key_mgr"].Keys))
	for kid, k := range allKeys["root"].Keys {
		keys[kid] = k
	}
	for kid, k := range allKeys["key_mgr"].Keys {
		keys[kid] = k
	}

	roles := map[string]RoleKeys{
		"root":      rootDeleg.ToRoleKeys(),
		"targets":   keyMgrDeleg.ToRoleKeys(),
		"snapshot":  {KeyIDs: []string{}, Threshold: 1},
		"timestamp": {KeyIDs: []string{}, Threshold: 1},
	}

	return map[string]interface{}{
		"_type":        "root",
		"spec_version": specVersionV1,
		"version":      r.Version,
		"keys":         keys,
		"roles":        roles,
	}, nil
}

// UpgradedSignature canonicalizes signable and signs it with sk,
// returning a RoleSignature keyed by the signer's hex public key.
func UpgradedSignature(signable map[string]interface{}, pkHex string, sk []byte) (RoleSignature, error) {
	canon, err := cjson.EncodeCanonical(signable)
	if err != nil {
		return RoleSignature{}, ErrRoleMetadata{Msg: fmt.Sprintf("failed to canonicalize upgrade signable: %v", err)}
	}
	sig, err := edsign.Sign(canon, sk)
	if err != nil {
		return RoleSignature{}, ErrCrypto{Msg: "failed to sign upgrade signable", Err: err}
	}
	sigHex, err := hex.BinToHex(sig[:])
	if err != nil {
		return RoleSignature{}, ErrCrypto{Msg: "failed to hex-encode signature", Err: err}
	}
	return RoleSignature{KeyID: pkHex, Sig: sigHex}, nil
}

// parseSignaturesV06 decodes the v0.6 "signatures" map shape:
// {keyid: {"signature": hex}}.
func parseSignaturesV06(raw json.RawMessage) (SignatureSet, error) {
	var m map[string]struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("invalid v0.6 signatures map: %v", err)}
	}
	sigs := make([]RoleSignature, 0, len(m))
	for kid, v := range m {
		sigs = append(sigs, RoleSignature{KeyID: kid, Sig: v.Signature})
	}
	return NewSignatureSet(sigs), nil
}
