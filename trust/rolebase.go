package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SpecVersion identifies a root metadata dialect's major spec version.
type SpecVersion int

const (
	SpecVersionV06 SpecVersion = iota
	SpecVersionV1
)

func (s SpecVersion) String() string {
	switch s {
	case SpecVersionV06:
		return "0.6"
	case SpecVersionV1:
		return "1"
	default:
		return "unknown"
	}
}

// specVersionV1 is the engine's fixed internal spec_version string for
// newly-authored v1 root metadata, matching validate.cpp's "1.0.17".
const specVersionV1 = "1.0.17"

// RoleBase carries the fields every role dialect agrees on, mirroring
// validate.cpp's RoleBase: a role name, the dialect's spec_version
// string, a monotonic version counter, and the file extension its
// metadata files use.
type RoleBase struct {
	Type        string
	SpecVersion string
	Version     uint64
	Ext         string
}

func specMajor(v string) (int, error) {
	parts := strings.SplitN(v, ".", 2)
	return strconv.Atoi(parts[0])
}

// IsSpecVersionCompatible reports whether version shares this role's
// major spec version component.
func (b RoleBase) IsSpecVersionCompatible(version string) bool {
	m1, err1 := specMajor(b.SpecVersion)
	m2, err2 := specMajor(version)
	if err1 != nil || err2 != nil {
		return false
	}
	return m1 == m2
}

// IsSpecVersionUpgradable reports whether version is exactly one major
// spec version ahead of this role's.
func (b RoleBase) IsSpecVersionUpgradable(version string) bool {
	m1, err1 := specMajor(b.SpecVersion)
	m2, err2 := specMajor(version)
	if err1 != nil || err2 != nil {
		return false
	}
	return m2 == m1+1
}

// MajorSpecVersion classifies this role's spec_version into one of the
// two dialects the engine understands.
func (b RoleBase) MajorSpecVersion() (SpecVersion, error) {
	m, err := specMajor(b.SpecVersion)
	if err != nil {
		return 0, ErrRoleMetadata{Msg: fmt.Sprintf("invalid spec_version %q", b.SpecVersion)}
	}
	switch m {
	case 0:
		return SpecVersionV06, nil
	case 1:
		return SpecVersionV1, nil
	default:
		return 0, ErrRoleMetadata{Msg: fmt.Sprintf("unsupported spec_version major component %d", m)}
	}
}

// initialNameRe matches a role's bootstrap filename: "<N>.<reponame>.<type>.<ext>",
// where N is any number without a leading zero (it is not captured).
var initialNameRe = regexp.MustCompile(`^[1-9][0-9]*\.[A-Za-z0-9_]+\.(?P<type>[A-Za-z0-9_]+)\.(?P<ext>[A-Za-z0-9_]+)$`)

// updateNameRe matches an update filename: "<version>.<reponame>.<type>.<ext>".
var updateNameRe = regexp.MustCompile(`^(?P<version>[1-9][0-9]*)\.[A-Za-z0-9_]+\.(?P<type>[A-Za-z0-9_]+)\.(?P<ext>[A-Za-z0-9_]+)$`)

// ReadFile validates path's basename against the role's filename
// grammar, then reads and JSON-validates its contents. Filename
// violations and I/O failures surface as ErrRoleFile; malformed JSON
// surfaces as ErrRoleMetadata, matching validate.cpp's RoleBase::read_file
// which separates "this isn't a metadata file at all" from "this
// metadata file is corrupt".
//
// When updateMode is true, the filename must carry a numeric prefix
// equal to b.Version+1 (the rollback-attack defense begins here, before
// a single byte of the candidate's JSON body is even parsed).
func (b RoleBase) ReadFile(path string, updateMode bool) (json.RawMessage, error) {
	name := filepath.Base(path)
	re := initialNameRe
	if updateMode {
		re = updateNameRe
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return nil, ErrRoleFile{Msg: fmt.Sprintf("%q is not a valid %s metadata file name", name, b.Type)}
	}
	groups := map[string]string{}
	for i, n := range re.SubexpNames() {
		if n != "" {
			groups[n] = m[i]
		}
	}
	if b.Type != "" && groups["type"] != b.Type {
		return nil, ErrRoleFile{Msg: fmt.Sprintf("%q metadata file should have type %q, not %q", name, b.Type, groups["type"])}
	}
	if b.Ext != "" && groups["ext"] != b.Ext {
		return nil, ErrRoleFile{Msg: fmt.Sprintf("%q metadata file should have extension %q, not %q", name, b.Ext, groups["ext"])}
	}
	if updateMode {
		v, err := strconv.ParseUint(groups["version"], 10, 64)
		if err != nil {
			return nil, ErrRoleFile{Msg: fmt.Sprintf("%q has an unparseable version prefix", name)}
		}
		if v != b.Version+1 {
			return nil, ErrRoleFile{Msg: fmt.Sprintf("%q metadata file name should start with version %d, starts with %d", b.Type, b.Version+1, v)}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrRoleFile{Msg: fmt.Sprintf("failed to read %s: %v", path, err)}
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, ErrRoleMetadata{Msg: fmt.Sprintf("%s does not contain valid json: %v", path, err)}
	}
	return json.RawMessage(data), nil
}
