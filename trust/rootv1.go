package trust

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// RootRoleName is the closed set of role names a v1 root metadata
// document may declare, matching validate.cpp's Role enum.
type RootRoleName string

const (
	RoleRoot      RootRoleName = "root"
	RoleTargets   RootRoleName = "targets"
	RoleSnapshot  RootRoleName = "snapshot"
	RoleTimestamp RootRoleName = "timestamp"
	RoleMirrors   RootRoleName = "mirrors"
	RoleInvalid   RootRoleName = ""
)

func parseRootRoleName(s string) RootRoleName {
	switch RootRoleName(s) {
	case RoleRoot, RoleTargets, RoleSnapshot, RoleTimestamp, RoleMirrors:
		return RootRoleName(s)
	default:
		return RoleInvalid
	}
}

// mandatoryRootRolesV1 must all be present in a v1 root's "roles" map;
// "mirrors" is recognized but optional.
var mandatoryRootRolesV1 = []string{"root", "snapshot", "targets", "timestamp"}

// RootRoleV1 is the v1 dialect of root metadata: a flat key table plus
// a per-role keyid/threshold map, matching validate.cpp's
// v1::RootRole.
type RootRoleV1 struct {
	RoleBase
	KeyTable map[string]Key
	Roles    map[string]RoleKeys
}

// Base satisfies the RootRole interface.
func (r *RootRoleV1) Base() RoleBase { return r.RoleBase }

type rootV1Signed struct {
	Type        string              `json:"_type"`
	SpecVersion string              `json:"spec_version"`
	Version     uint64              `json:"version"`
	Keys        map[string]Key      `json:"keys"`
	Roles       map[string]RoleKeys `json:"roles"`
}

// NewRootRoleV1 constructs an empty, unsigned v1 root role carrying the
// engine's fixed internal spec version, for callers authoring a new
// root (e.g. the v0.6-to-v1 upgrade path) from scratch.
func NewRootRoleV1() *RootRoleV1 {
	return &RootRoleV1{
		RoleBase: RoleBase{Type: "root", SpecVersion: specVersionV1, Version: 1, Ext: "json"},
		KeyTable: map[string]Key{},
		Roles:    map[string]RoleKeys{},
	}
}

// LoadRootV1 parses and structurally validates data as a v1 root
// metadata document. It does not check signatures; callers verify
// separately against whichever keyring applies (see Store.Update).
func LoadRootV1(data []byte) (*RootRoleV1, error) {
	signedRaw, _, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}
	var signed rootV1Signed
	if err := json.Unmarshal(signedRaw, &signed); err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("invalid v1 root metadata: %v", err)}
	}
	if signed.Type != "root" {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf(`expected _type "root", got %q`, signed.Type)}
	}
	if !strings.HasPrefix(signed.SpecVersion, "1.") {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf(`v1 root metadata must have a spec_version starting with "1.", got %q`, signed.SpecVersion)}
	}

	present := make([]string, 0, len(signed.Roles))
	for name, rk := range signed.Roles {
		if parseRootRoleName(name) == RoleInvalid {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("unrecognized role name %q in root metadata", name)}
		}
		if len(rk.KeyIDs) == 0 {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("role %q must declare at least one keyid", name)}
		}
		if rk.Threshold < 1 {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("role %q must declare a threshold of at least 1", name)}
		}
		for _, kid := range rk.KeyIDs {
			if _, ok := signed.Keys[kid]; !ok {
				return nil, ErrRoleMetadata{Msg: fmt.Sprintf("role %q references unknown keyid %q", name, kid)}
			}
		}
		present = append(present, name)
	}
	for _, mandatory := range mandatoryRootRolesV1 {
		if !slices.Contains(present, mandatory) {
			return nil, ErrRoleMetadata{Msg: fmt.Sprintf("root metadata is missing mandatory role %q", mandatory)}
		}
	}

	return &RootRoleV1{
		RoleBase: RoleBase{Type: signed.Type, SpecVersion: signed.SpecVersion, Version: signed.Version, Ext: "json"},
		KeyTable: signed.Keys,
		Roles:    signed.Roles,
	}, nil
}

// Keys materializes the full per-role keyring by projecting each role's
// keyids through the flat key table.
func (r *RootRoleV1) Keys() map[string]RoleFullKeys {
	out := make(map[string]RoleFullKeys, len(r.Roles))
	for name, rk := range r.Roles {
		keys := make(map[string]Key, len(rk.KeyIDs))
		for _, kid := range rk.KeyIDs {
			keys[kid] = r.KeyTable[kid]
		}
		out[name] = RoleFullKeys{Keys: keys, Threshold: rk.Threshold}
	}
	return out
}

// parseSignaturesV1 decodes the v1 "signatures" array shape.
func parseSignaturesV1(raw json.RawMessage) (SignatureSet, error) {
	var sigs []RoleSignature
	if err := json.Unmarshal(raw, &sigs); err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("invalid v1 signatures array: %v", err)}
	}
	return NewSignatureSet(sigs), nil
}
