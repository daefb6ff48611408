package finsy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/finsy-network/finsy/pkg/creds"
	"github.com/finsy-network/finsy/pkg/util"
)

// inventoryFile is the on-disk switch inventory:
//
//	switches:
//	  - name: s1
//	    address: 127.0.0.1:50001
//	    device_id: 1
//	    p4info: pipelines/main.p4info.txtpb
//	    p4blob: pipelines/main.json
type inventoryFile struct {
	Switches []inventorySwitch `yaml:"switches"`
}

type inventorySwitch struct {
	Name       string             `yaml:"name"`
	Address    string             `yaml:"address"`
	DeviceID   uint64             `yaml:"device_id"`
	ElectionID uint64             `yaml:"election_id"`
	P4Info     string             `yaml:"p4info"`
	P4Blob     string             `yaml:"p4blob"`
	P4Force    bool               `yaml:"p4force"`
	RoleName   string             `yaml:"role_name"`
	FailFast   bool               `yaml:"fail_fast"`
	TLS        *creds.Credentials `yaml:"tls"`
}

// LoadInventory reads a YAML switch inventory. Relative pipeline paths
// are resolved against the inventory file's directory. Unknown fields
// are an error.
func LoadInventory(path string) ([]*Switch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	switches, err := ParseInventory(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	return switches, nil
}

// ParseInventory parses inventory YAML; baseDir anchors relative
// pipeline paths.
func ParseInventory(data []byte, baseDir string) ([]*Switch, error) {
	var file inventoryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	if len(file.Switches) == 0 {
		return nil, fmt.Errorf("%w: no switches defined", util.ErrInvalidConfig)
	}

	seen := map[string]bool{}
	out := make([]*Switch, 0, len(file.Switches))
	for i, entry := range file.Switches {
		if entry.Name == "" || entry.Address == "" {
			return nil, fmt.Errorf("%w: switch #%d needs name and address",
				util.ErrInvalidConfig, i+1)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("%w: duplicate switch name %q",
				util.ErrInvalidConfig, entry.Name)
		}
		seen[entry.Name] = true

		opts := SwitchOptions{
			P4InfoPath:        resolvePath(baseDir, entry.P4Info),
			P4BlobPath:        resolvePath(baseDir, entry.P4Blob),
			P4Force:           entry.P4Force,
			DeviceID:          entry.DeviceID,
			InitialElectionID: ElectionIDFromUint64(entry.ElectionID),
			RoleName:          entry.RoleName,
			FailFast:          entry.FailFast,
		}
		if entry.TLS != nil {
			tls := *entry.TLS
			tls.CACert = resolvePath(baseDir, tls.CACert)
			tls.Cert = resolvePath(baseDir, tls.Cert)
			tls.Key = resolvePath(baseDir, tls.Key)
			opts.Credentials = &tls
		}
		sw, err := NewSwitch(entry.Name, entry.Address, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
