package creds

import (
	"strings"
	"testing"
)

func TestInsecureByDefault(t *testing.T) {
	var c *Credentials
	if c.IsSecure() {
		t.Error("nil credentials should be insecure")
	}
	tc, err := c.Transport()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Info().SecurityProtocol != "insecure" {
		t.Errorf("protocol = %q", tc.Info().SecurityProtocol)
	}

	if (&Credentials{}).IsSecure() {
		t.Error("empty credentials should be insecure")
	}
}

func TestIsSecure(t *testing.T) {
	tests := []Credentials{
		{CACert: "ca.pem"},
		{Cert: "c.pem", Key: "k.pem"},
		{CACertPEM: []byte("pem")},
		{CertPEM: []byte("pem"), KeyPEM: []byte("pem")},
		{TargetNameOverride: "switch.example"},
	}
	for _, c := range tests {
		if !c.IsSecure() {
			t.Errorf("%+v should be secure", c)
		}
	}
}

func TestTransportMissingFiles(t *testing.T) {
	if _, err := (&Credentials{CACert: "/no/such/ca.pem"}).Transport(); err == nil {
		t.Error("missing CA file should fail")
	}
	if _, err := (&Credentials{Cert: "/no/such/c.pem", Key: "/no/such/k.pem"}).Transport(); err == nil {
		t.Error("missing client pair should fail")
	}
}

func TestTransportInMemoryPEM(t *testing.T) {
	// Bytes take precedence over the path: the bogus blob must be
	// rejected as PEM, not the unreadable path as a file.
	c := &Credentials{CACert: "/no/such/ca.pem", CACertPEM: []byte("not a certificate")}
	if _, err := c.Transport(); err == nil || !strings.Contains(err.Error(), "no certificates found") {
		t.Errorf("bogus CA bytes: err = %v", err)
	}

	c = &Credentials{CertPEM: []byte("not a cert"), KeyPEM: []byte("not a key")}
	if _, err := c.Transport(); err == nil || !strings.Contains(err.Error(), "client certificate") {
		t.Errorf("bogus client pair bytes: err = %v", err)
	}
}
