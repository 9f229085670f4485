package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRootV1Valid(t *testing.T) {
	kid, sk := genKeyPair(t)
	signed := buildV1Signed(1, fullRolesV1(kid), 1)
	data := signEnvelopeV1(t, signed, map[string][]byte{kid: sk})

	role, err := LoadRootV1(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), role.Version)
	assert.Equal(t, "root", role.Type)

	keys := role.Keys()
	require.Contains(t, keys, "root")
	assert.Equal(t, uint(1), keys["root"].Threshold)
	assert.Contains(t, keys["root"].Keys, kid)
}

func TestLoadRootV1RejectsMissingMandatoryRole(t *testing.T) {
	kid, _ := genKeyPair(t)
	roles := fullRolesV1(kid)
	delete(roles, "timestamp")
	signed := buildV1Signed(1, roles, 1)
	data := signEnvelopeV1(t, signed, map[string][]byte{})

	_, err := LoadRootV1(data)
	require.Error(t, err)
	assert.IsType(t, ErrRoleMetadata{}, err)
}

func TestLoadRootV1RejectsUnrecognizedRoleName(t *testing.T) {
	kid, _ := genKeyPair(t)
	roles := fullRolesV1(kid)
	roles["bogus"] = []string{kid}
	signed := buildV1Signed(1, roles, 1)
	data := signEnvelopeV1(t, signed, map[string][]byte{})

	_, err := LoadRootV1(data)
	require.Error(t, err)
}

func TestLoadRootV1RejectsDanglingKeyid(t *testing.T) {
	kid, _ := genKeyPair(t)
	signed := buildV1Signed(1, fullRolesV1(kid), 1)
	// Reference a keyid that was never added to the "keys" table.
	signed["roles"].(map[string]interface{})["mirrors"] = map[string]interface{}{
		"keyids":    []string{"nonexistent"},
		"threshold": 1,
	}
	data := signEnvelopeV1(t, signed, map[string][]byte{})

	_, err := LoadRootV1(data)
	require.Error(t, err)
}

func TestLoadRootV1RejectsZeroThreshold(t *testing.T) {
	kid, _ := genKeyPair(t)
	roles := fullRolesV1(kid)
	signed := buildV1Signed(1, roles, 1)
	signed["roles"].(map[string]interface{})["root"].(map[string]interface{})["threshold"] = 0
	data := signEnvelopeV1(t, signed, map[string][]byte{})

	_, err := LoadRootV1(data)
	require.Error(t, err)
}

func TestLoadRootV1RejectsWrongType(t *testing.T) {
	kid, _ := genKeyPair(t)
	signed := buildV1Signed(1, fullRolesV1(kid), 1)
	signed["_type"] = "snapshot"
	data := signEnvelopeV1(t, signed, map[string][]byte{})

	_, err := LoadRootV1(data)
	require.Error(t, err)
}

func TestLoadRootV1RejectsWrongSpecVersionMajor(t *testing.T) {
	kid, _ := genKeyPair(t)
	signed := buildV1Signed(1, fullRolesV1(kid), 1)
	signed["spec_version"] = "0.6.0"
	data := signEnvelopeV1(t, signed, map[string][]byte{})

	_, err := LoadRootV1(data)
	require.Error(t, err)
}
