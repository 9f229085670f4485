package trust

import (
	"testing"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/go-trust/edsign"
)

func TestLoadRootV06Valid(t *testing.T) {
	rootKid, _ := genKeyPair(t)
	keyMgrKid, _ := genKeyPair(t)
	signed := buildV06Signed(1, []string{rootKid}, []string{keyMgrKid}, 1)
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	role, err := LoadRootV06(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), role.Version)

	keys := role.Keys()
	require.Contains(t, keys, "root")
	require.Contains(t, keys, "key_mgr")
	assert.Contains(t, keys["root"].Keys, rootKid)
	assert.Contains(t, keys["key_mgr"].Keys, keyMgrKid)
}

func TestLoadRootV06RejectsMissingDelegation(t *testing.T) {
	rootKid, _ := genKeyPair(t)
	signed := buildV06Signed(1, []string{rootKid}, []string{rootKid}, 1)
	delete(signed["delegations"].(map[string]interface{}), "key_mgr")
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	_, err := LoadRootV06(data)
	require.Error(t, err)
	assert.IsType(t, ErrRoleMetadata{}, err)
}

func TestLoadRootV06RejectsExtraDelegation(t *testing.T) {
	rootKid, _ := genKeyPair(t)
	signed := buildV06Signed(1, []string{rootKid}, []string{rootKid}, 1)
	signed["delegations"].(map[string]interface{})["extra"] = map[string]interface{}{
		"pubkeys":   []string{rootKid},
		"threshold": 1,
	}
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	_, err := LoadRootV06(data)
	require.Error(t, err)
}

func TestLoadRootV06RejectsBadPubkeyHex(t *testing.T) {
	signed := buildV06Signed(1, []string{"not-hex"}, []string{"not-hex"}, 1)
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	_, err := LoadRootV06(data)
	require.Error(t, err)
}

func TestLoadRootV06RejectsWrongMetadataSpecVersion(t *testing.T) {
	rootKid, _ := genKeyPair(t)
	signed := buildV06Signed(1, []string{rootKid}, []string{rootKid}, 1)
	signed["metadata_spec_version"] = "1.0.0"
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	_, err := LoadRootV06(data)
	require.Error(t, err)
}

func TestUpgradedSignableShape(t *testing.T) {
	rootKid, _ := genKeyPair(t)
	keyMgrKid, _ := genKeyPair(t)
	signed := buildV06Signed(3, []string{rootKid}, []string{keyMgrKid}, 1)
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	role, err := LoadRootV06(data)
	require.NoError(t, err)

	upgraded, err := role.UpgradedSignable()
	require.NoError(t, err)
	assert.Equal(t, "root", upgraded["_type"])
	assert.Equal(t, uint64(3), upgraded["version"])

	roles := upgraded["roles"].(map[string]RoleKeys)
	assert.Equal(t, []string{rootKid}, roles["root"].KeyIDs)
	assert.Equal(t, []string{keyMgrKid}, roles["targets"].KeyIDs)
	assert.Empty(t, roles["snapshot"].KeyIDs)
	assert.Empty(t, roles["timestamp"].KeyIDs)

	keys := upgraded["keys"].(map[string]Key)
	assert.Contains(t, keys, rootKid)
	assert.Contains(t, keys, keyMgrKid)
}

func TestUpgradedSignatureVerifies(t *testing.T) {
	rootKid, rootSk := genKeyPair(t)
	keyMgrKid, _ := genKeyPair(t)
	signed := buildV06Signed(1, []string{rootKid}, []string{keyMgrKid}, 1)
	data := signEnvelopeV06(t, signed, map[string][]byte{})

	role, err := LoadRootV06(data)
	require.NoError(t, err)

	upgraded, err := role.UpgradedSignable()
	require.NoError(t, err)

	sig, err := UpgradedSignature(upgraded, rootKid, rootSk)
	require.NoError(t, err)
	assert.Equal(t, rootKid, sig.KeyID)
	assert.NotEmpty(t, sig.Sig)

	canon, err := cjson.EncodeCanonical(upgraded)
	require.NoError(t, err)
	ok, err := edsign.VerifyHex(canon, rootKid, sig.Sig)
	require.NoError(t, err)
	assert.True(t, ok)
}
