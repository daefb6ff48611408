package finsy

import (
	"errors"
	"testing"

	"github.com/finsy-network/finsy/pkg/util"
)

const sampleInventory = `
switches:
  - name: s1
    address: 127.0.0.1:50001
    device_id: 1
  - name: s2
    address: 127.0.0.1:50002
    device_id: 2
    election_id: 99
    role_name: monitor
    fail_fast: true
    tls:
      cacert: certs/ca.pem
`

func TestParseInventory(t *testing.T) {
	switches, err := ParseInventory([]byte(sampleInventory), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(switches) != 2 {
		t.Fatalf("parsed %d switches", len(switches))
	}

	s1 := switches[0]
	if s1.Name() != "s1" || s1.Address() != "127.0.0.1:50001" {
		t.Errorf("s1 = %s @ %s", s1.Name(), s1.Address())
	}
	if s1.Options().InitialElectionID != ElectionIDFromUint64(10) {
		t.Errorf("s1 election id = %v, want default 10", s1.Options().InitialElectionID)
	}

	s2 := switches[1]
	opts := s2.Options()
	if opts.DeviceID != 2 || opts.RoleName != "monitor" || !opts.FailFast {
		t.Errorf("s2 options = %+v", opts)
	}
	if opts.InitialElectionID != ElectionIDFromUint64(99) {
		t.Errorf("s2 election id = %v", opts.InitialElectionID)
	}
	if opts.Credentials == nil || opts.Credentials.CACert != "certs/ca.pem" {
		t.Errorf("s2 credentials = %+v", opts.Credentials)
	}
}

func TestParseInventoryResolvesPaths(t *testing.T) {
	creds := `
switches:
  - name: s1
    address: h:1
    tls:
      cacert: certs/ca.pem
      cert: /abs/client.pem
`
	switches, err := ParseInventory([]byte(creds), "/etc/finsy")
	if err != nil {
		t.Fatal(err)
	}
	tls := switches[0].Options().Credentials
	if tls.CACert != "/etc/finsy/certs/ca.pem" {
		t.Errorf("relative cacert = %q", tls.CACert)
	}
	if tls.Cert != "/abs/client.pem" {
		t.Errorf("absolute cert = %q", tls.Cert)
	}
}

func TestParseInventoryErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", "switches: []"},
		{"missing name", "switches:\n  - address: h:1"},
		{"missing address", "switches:\n  - name: s1"},
		{"duplicate name", "switches:\n  - {name: s1, address: a:1}\n  - {name: s1, address: b:1}"},
		{"unknown field", "switches:\n  - {name: s1, address: a:1, bogus: 1}"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseInventory([]byte(tc.yaml), ""); !errors.Is(err, util.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
