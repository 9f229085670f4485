package trust

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	log "github.com/sirupsen/logrus"

	"github.com/mamba-org/go-trust/edsign"
)

// RootRole is the closed interface both root metadata dialects satisfy,
// standing in for the teacher's generic Roles type constraint
// (metadata/types.go) — a tagged-variant interface rather than a
// generic parameter, per spec.md §9's preference for explicit dialect
// dispatch over generics here.
type RootRole interface {
	Base() RoleBase
	Keys() map[string]RoleFullKeys
}

// splitEnvelope extracts the raw "signed" and "signatures" sub-documents
// from a root metadata envelope without interpreting either.
func splitEnvelope(data []byte) (signedRaw, signaturesRaw json.RawMessage, err error) {
	var env struct {
		Signed     json.RawMessage `json:"signed"`
		Signatures json.RawMessage `json:"signatures"`
	}
	if jsonErr := json.Unmarshal(data, &env); jsonErr != nil {
		return nil, nil, ErrRoleMetadata{Msg: fmt.Sprintf("invalid root metadata envelope: %v", jsonErr)}
	}
	if len(env.Signed) == 0 {
		return nil, nil, ErrRoleMetadata{Msg: "root metadata envelope is missing 'signed'"}
	}
	if len(env.Signatures) == 0 {
		return nil, nil, ErrRoleMetadata{Msg: "root metadata envelope is missing 'signatures'"}
	}
	return env.Signed, env.Signatures, nil
}

// canonicalSignedBytes re-encodes the exact "signed" sub-document that
// was parsed (not a reconstruction from our own struct) into canonical
// JSON, so signature verification is over precisely what the signer
// signed, including any fields this engine doesn't itself model.
// json.Number preserves integer precision through the round trip.
func canonicalSignedBytes(signedRaw json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(signedRaw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("invalid 'signed' json: %v", err)}
	}
	out, err := cjson.EncodeCanonical(generic)
	if err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("failed to canonicalize 'signed': %v", err)}
	}
	return out, nil
}

func isV1Signed(signedRaw json.RawMessage) bool {
	var probe struct {
		SpecVersion string `json:"spec_version"`
	}
	if err := json.Unmarshal(signedRaw, &probe); err != nil {
		return false
	}
	return strings.HasPrefix(probe.SpecVersion, "1.")
}

func isV06Signed(signedRaw json.RawMessage) bool {
	var probe struct {
		MetadataSpecVersion string `json:"metadata_spec_version"`
	}
	if err := json.Unmarshal(signedRaw, &probe); err != nil {
		return false
	}
	return strings.HasPrefix(probe.MetadataSpecVersion, "0.6.")
}

// parseCandidate determines a root metadata document's dialect and
// parses it accordingly. v0.6 is tried first, then v1, matching
// validate.cpp's dialect-probing order; a document matching neither is
// a spec version error.
func parseCandidate(data []byte) (RootRole, SpecVersion, error) {
	signedRaw, _, err := splitEnvelope(data)
	if err != nil {
		return nil, 0, err
	}
	switch {
	case isV06Signed(signedRaw):
		role, err := LoadRootV06(data)
		if err != nil {
			return nil, 0, err
		}
		return role, SpecVersionV06, nil
	case isV1Signed(signedRaw):
		role, err := LoadRootV1(data)
		if err != nil {
			return nil, 0, err
		}
		return role, SpecVersionV1, nil
	default:
		return nil, 0, ErrSpecVersion{Msg: "root metadata matches neither the v0.6 nor v1 dialect"}
	}
}

// CheckSignatures implements the signature-threshold check of spec.md
// §4.7: iterate sigs in their fixed (keyid-sorted) order, skip keyids
// absent from keyring with a warning, count valid signatures, and stop
// as soon as threshold is met. When strict is set, any signature whose
// keyid is absent from keyring fails the check before counting begins.
func CheckSignatures(signedBytes []byte, sigs SignatureSet, keyring RoleFullKeys, strict bool) error {
	if strict {
		for _, sig := range sigs {
			if _, ok := keyring.Keys[sig.KeyID]; !ok {
				return ErrThreshold{Msg: fmt.Sprintf("signature from unknown keyid %q rejected under strict mode", sig.KeyID)}
			}
		}
	}
	valid := 0
	for _, sig := range sigs {
		key, ok := keyring.Keys[sig.KeyID]
		if !ok {
			if strict {
				return ErrThreshold{Msg: fmt.Sprintf("signature from unknown keyid %q rejected under strict mode", sig.KeyID)}
			}
			log.Warnf("trust: signature from unrecognized keyid %q, ignoring", sig.KeyID)
			continue
		}
		ok2, err := edsign.VerifyHex(signedBytes, key.KeyVal, sig.Sig)
		if err != nil {
			log.Debugf("trust: malformed signature for keyid %q: %v", sig.KeyID, err)
			continue
		}
		if !ok2 {
			log.Debugf("trust: signature for keyid %q does not verify", sig.KeyID)
			continue
		}
		valid++
		if valid >= int(keyring.Threshold) {
			break
		}
	}
	if valid < int(keyring.Threshold) {
		return ErrThreshold{Msg: fmt.Sprintf("threshold not met: got %d valid signature(s), need %d", valid, keyring.Threshold)}
	}
	return nil
}

// verifyAgainstKeyring checks data's signatures against keyring,
// deriving the signed bytes and signature set from data's own envelope
// (its own dialect, not the keyring's owner's).
func verifyAgainstKeyring(data []byte, keyring RoleFullKeys, strict bool) error {
	signedRaw, sigsRaw, err := splitEnvelope(data)
	if err != nil {
		return err
	}
	signedBytes, err := canonicalSignedBytes(signedRaw)
	if err != nil {
		return err
	}
	var sigs SignatureSet
	if isV06Signed(signedRaw) {
		sigs, err = parseSignaturesV06(sigsRaw)
	} else {
		sigs, err = parseSignaturesV1(sigsRaw)
	}
	if err != nil {
		return err
	}
	return CheckSignatures(signedBytes, sigs, keyring, strict)
}

// verifySelfSigned checks data's signatures against role's own "root"
// keyring — the arbitrary-software-attack defense's second half, and
// also the only check performed at bootstrap (Scenario A), where there
// is no prior trusted root to also check against.
func verifySelfSigned(data []byte, role RootRole, strict bool) error {
	rootKeys, ok := role.Keys()["root"]
	if !ok {
		return ErrRoleMetadata{Msg: "root metadata has no 'root' role keyring"}
	}
	return verifyAgainstKeyring(data, rootKeys, strict)
}

// Store is the trust engine's verified state: the currently-trusted
// root role and the repository base URL it was bootstrapped for,
// mirroring validate.cpp's RepoTrust/TrustStore member layout.
//
// A Store has no internal locking and is not safe for concurrent use;
// callers that share one across goroutines must serialize their calls.
type Store struct {
	BaseURL string

	// StrictKeyIDs makes an unrecognized keyid in a candidate's
	// signatures a hard failure instead of a warning. Defaults to
	// false per spec.md §9 ("must not be the default").
	StrictKeyIDs bool

	current RootRole
}

// NewStore bootstraps a Store from an already-fetched, already-trusted
// root metadata document: it is parsed, self-verified against its own
// keyring (its own dialect's "root" role), and installed as current
// with no rollback or cross-keyring checks, matching spec.md §4.7's
// bootstrap case and Scenario A.
func NewStore(baseURL string, trustedRootData []byte) (*Store, error) {
	role, _, err := parseCandidate(trustedRootData)
	if err != nil {
		return nil, err
	}
	if err := verifySelfSigned(trustedRootData, role, false); err != nil {
		return nil, err
	}
	return &Store{BaseURL: baseURL, current: role}, nil
}

// Current returns the currently-trusted root role.
func (s *Store) Current() RootRole { return s.current }

// Update attempts to advance the store's trusted root to candidateData,
// implementing spec.md §4.7's five-step state machine:
//  1. parse and structurally validate the candidate (dialect is
//     auto-detected; a v1 store refuses a v0.6 candidate — no downgrade);
//  2. verify the candidate's signatures against the CURRENT root's
//     keyring (defends against an attacker replaying an old, differently
//     keyed root — this is also where a v0.6→v1 upgrade's keyring
//     carries over unchanged, since a v0.6 root's own "root" keyring
//     already equals its v1-equivalent synthesis, see rootv06.go);
//  3. verify the candidate's signatures against its OWN keyring (defends
//     against an attacker forging an unsigned or under-signed root);
//  4. check the version is exactly current+1 (rollback-attack defense);
//  5. install the candidate as current.
func (s *Store) Update(candidateData []byte) error {
	candidate, _, err := parseCandidate(candidateData)
	if err != nil {
		return err
	}

	if _, currentIsV1 := s.current.(*RootRoleV1); currentIsV1 {
		if _, candidateIsV06 := candidate.(*RootRoleV06); candidateIsV06 {
			return ErrSpecVersion{Msg: "cannot downgrade trusted root from dialect v1 to v0.6"}
		}
	}

	currentRootKeys, ok := s.current.Keys()["root"]
	if !ok {
		return ErrRoleMetadata{Msg: "current trusted root has no 'root' role keyring"}
	}
	if err := verifyAgainstKeyring(candidateData, currentRootKeys, s.StrictKeyIDs); err != nil {
		return err
	}

	if err := verifySelfSigned(candidateData, candidate, s.StrictKeyIDs); err != nil {
		return err
	}

	curVersion := s.current.Base().Version
	newVersion := candidate.Base().Version
	switch {
	case newVersion == curVersion+1:
		// expected advance
	case newVersion > curVersion+1:
		return ErrRoleMetadata{Msg: fmt.Sprintf("root metadata version must be exactly %d, got %d", curVersion+1, newVersion)}
	default:
		return ErrRollback{Msg: fmt.Sprintf("root metadata version %d is not newer than the current trusted version %d", newVersion, curVersion)}
	}

	s.current = candidate
	log.Infof("trust: advanced trusted root from version %d to %d", curVersion, newVersion)
	return nil
}

// RepoTrust bundles a Store with the bootstrap details spec.md's
// original RepoTrust carries: the local path a trusted root was loaded
// from. Unlike validate.cpp's RepoTrust constructor — which ignores its
// own spec_version argument and always builds a v1::RootRole — this
// honors the declared dialect: the file is parsed only as that dialect,
// so a file of the other dialect fails with that dialect loader's
// ErrRoleMetadata, and a SpecVersion outside the two known dialects
// fails with ErrSpecVersion (see DESIGN.md's Open Question #2).
type RepoTrust struct {
	*Store

	LocalRootPath string
}

// NewRepoTrust loads and self-verifies the root metadata file at
// localTrustedRootPath as the declared specVersion dialect, and
// bootstraps a Store from it.
func NewRepoTrust(baseURL, localTrustedRootPath string, specVersion SpecVersion) (*RepoTrust, error) {
	base := RoleBase{Type: "root", Ext: "json"}
	data, err := base.ReadFile(localTrustedRootPath, false)
	if err != nil {
		return nil, err
	}

	var role RootRole
	switch specVersion {
	case SpecVersionV06:
		role, err = LoadRootV06(data)
	case SpecVersionV1:
		role, err = LoadRootV1(data)
	default:
		return nil, ErrSpecVersion{Msg: "unsupported spec version for repository trust bootstrap"}
	}
	if err != nil {
		return nil, err
	}
	if err := verifySelfSigned(data, role, false); err != nil {
		return nil, err
	}

	return &RepoTrust{
		Store:         &Store{BaseURL: baseURL, current: role},
		LocalRootPath: localTrustedRootPath,
	}, nil
}
