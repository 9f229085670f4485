package trust

import (
	"encoding/json"
	"testing"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/go-trust/edsign"
	"github.com/mamba-org/go-trust/hex"
)

// genKeyPair returns a fresh Ed25519 hex-encoded public key and its raw
// seed private key, for signing test fixtures.
func genKeyPair(t *testing.T) (pkHex string, sk []byte) {
	t.Helper()
	pk, sk32, err := edsign.GenerateKeypair()
	require.NoError(t, err)
	pkHex, err = hex.BinToHex(pk[:])
	require.NoError(t, err)
	return pkHex, sk32[:]
}

// buildV1Signed assembles a v1 root "signed" body. roleKeys maps role
// name to the keyids authorized for it; every keyid referenced is added
// to the flat "keys" table as an ed25519 key (keyid doubles as keyval,
// as it would for a raw Ed25519 public key).
func buildV1Signed(version uint64, roleKeys map[string][]string, threshold uint) map[string]interface{} {
	keys := map[string]interface{}{}
	roles := map[string]interface{}{}
	for role, kids := range roleKeys {
		for _, kid := range kids {
			keys[kid] = map[string]string{"keytype": "ed25519", "scheme": "ed25519", "keyval": kid}
		}
		roles[role] = map[string]interface{}{"keyids": kids, "threshold": threshold}
	}
	return map[string]interface{}{
		"_type":        "root",
		"spec_version": "1.0.17",
		"version":      version,
		"keys":         keys,
		"roles":        roles,
	}
}

// buildV06Signed assembles a v0.6 root "signed" body with exactly the
// two mandatory delegations.
func buildV06Signed(version uint64, rootKeys, keyMgrKeys []string, threshold uint) map[string]interface{} {
	return map[string]interface{}{
		"type":                  "root",
		"metadata_spec_version": "0.6.0",
		"version":               version,
		"delegations": map[string]interface{}{
			"root":    map[string]interface{}{"pubkeys": rootKeys, "threshold": threshold},
			"key_mgr": map[string]interface{}{"pubkeys": keyMgrKeys, "threshold": threshold},
		},
	}
}

// signEnvelopeV1 canonicalizes signed, signs it with each signer in
// signers (keyid -> raw seed sk), and wraps the result in a v1-shaped
// envelope (a "signatures" array).
func signEnvelopeV1(t *testing.T, signed map[string]interface{}, signers map[string][]byte) []byte {
	t.Helper()
	canon, err := cjson.EncodeCanonical(signed)
	require.NoError(t, err)

	sigs := make([]map[string]string, 0, len(signers))
	for keyid, sk := range signers {
		sig, err := edsign.Sign(canon, sk)
		require.NoError(t, err)
		sigHex, err := hex.BinToHex(sig[:])
		require.NoError(t, err)
		sigs = append(sigs, map[string]string{"keyid": keyid, "sig": sigHex})
	}

	env := map[string]interface{}{"signed": signed, "signatures": sigs}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

// signEnvelopeV06 is signEnvelopeV1's counterpart for the v0.6
// "signatures" map shape.
func signEnvelopeV06(t *testing.T, signed map[string]interface{}, signers map[string][]byte) []byte {
	t.Helper()
	canon, err := cjson.EncodeCanonical(signed)
	require.NoError(t, err)

	sigMap := map[string]interface{}{}
	for keyid, sk := range signers {
		sig, err := edsign.Sign(canon, sk)
		require.NoError(t, err)
		sigHex, err := hex.BinToHex(sig[:])
		require.NoError(t, err)
		sigMap[keyid] = map[string]string{"signature": sigHex}
	}

	env := map[string]interface{}{"signed": signed, "signatures": sigMap}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

// fullRolesV1 is the smallest mandatory role set, all pointed at the
// same keyid, for tests that don't care about per-role key separation.
func fullRolesV1(keyid string) map[string][]string {
	return map[string][]string{
		"root":      {keyid},
		"targets":   {keyid},
		"snapshot":  {keyid},
		"timestamp": {keyid},
	}
}
