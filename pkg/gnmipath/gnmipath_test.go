package gnmipath

import (
	"testing"

	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
)

func TestParseSimple(t *testing.T) {
	p, err := Parse("interfaces/interface[name=eth0]/state/oper-status")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 4 {
		t.Fatalf("Len = %d", p.Len())
	}
	if p.Elem(0) != "interfaces" || p.Elem(3) != "oper-status" {
		t.Errorf("elems = %v", p.Proto().GetElem())
	}
	if p.Key("interface", "name") != "eth0" {
		t.Errorf("key = %q", p.Key("interface", "name"))
	}
}

func TestParseEmpty(t *testing.T) {
	for _, s := range []string{"", "/"} {
		p, err := Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		if p.Len() != 0 {
			t.Errorf("Parse(%q).Len = %d", s, p.Len())
		}
		if p.String() != "/" {
			t.Errorf("String = %q", p.String())
		}
	}
}

func TestParseLeadingSlash(t *testing.T) {
	a := MustParse("/a/b")
	b := MustParse("a/b")
	if !a.Equal(b) {
		t.Error("leading slash should not matter")
	}
}

func TestParseMultipleKeys(t *testing.T) {
	p := MustParse("net/route[prefix=10.0.0.0%2F8][vrf=blue]/next-hop")
	if p.Key("route", "prefix") == "" || p.Key("route", "vrf") != "blue" {
		t.Errorf("keys = %v", p.Proto().GetElem()[1].GetKey())
	}
}

func TestParseEscapes(t *testing.T) {
	tests := []struct {
		in   string
		elem string
	}{
		{`a\/b`, "a/b"},
		{`a\[b\]`, "a[b]"},
		{`a\\b`, `a\b`},
		{`a\nb`, "a\nb"},
		{`a\x41b`, "aAb"},
		{`aéb`, "aéb"},
		{`a\U0001f600b`, "a\U0001f600b"},
		{`a\qb`, "aqb"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := Parse(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if p.Len() != 1 || p.Elem(0) != tt.elem {
				t.Errorf("Parse(%q) = %q", tt.in, p.Elem(0))
			}
		})
	}
}

func TestParseKeyValueEscapes(t *testing.T) {
	p := MustParse(`t[k\=1=v\]2]`)
	if p.Key("t", "k=1") != "v]2" {
		t.Errorf("key = %v", p.Proto().GetElem()[0].GetKey())
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"a//b",
		"a/",
		"a[",
		"a[k",
		"a[k=v",
		"a[=v]",
		`a\`,
		`a\x4`,
		`a\xzz`,
		"a[k=1][k=2]",
	}
	for _, s := range bad {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) should fail", s)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	paths := []string{
		"/",
		"interfaces/interface[name=eth0]/state",
		`a\/b/c\[d\]`,
		`t[k\=1=v\]2]`,
	}
	for _, s := range paths {
		p := MustParse(s)
		back := MustParse(p.String())
		if !p.Equal(back) {
			t.Errorf("round trip of %q via %q changed the path", s, p.String())
		}
	}
}

func TestStringSortsKeys(t *testing.T) {
	p := FromProto(&gnmipb.Path{
		Elem: []*gnmipb.PathElem{
			{Name: "t", Key: map[string]string{"b": "2", "a": "1"}},
		},
	})
	if p.String() != "t[a=1][b=2]" {
		t.Errorf("String = %q", p.String())
	}
}

func TestWithOriginTargetKey(t *testing.T) {
	p := MustParse("interfaces/interface/state")
	q := p.WithOrigin("openconfig").WithTarget("sw1").WithKey("interface", "name", "eth7")
	if q.Origin() != "openconfig" || q.Target() != "sw1" {
		t.Errorf("origin/target = %q/%q", q.Origin(), q.Target())
	}
	if q.Key("interface", "name") != "eth7" {
		t.Errorf("key = %q", q.Key("interface", "name"))
	}
	// p is unchanged.
	if p.Origin() != "" || p.Key("interface", "name") != "" {
		t.Error("WithX should copy")
	}
}

func TestAppend(t *testing.T) {
	base := MustParse("interfaces/interface[name=eth0]")
	full := base.Append(MustParse("state/oper-status"))
	if full.String() != "interfaces/interface[name=eth0]/state/oper-status" {
		t.Errorf("Append = %q", full.String())
	}
	if base.Len() != 2 {
		t.Error("Append should not modify the receiver")
	}
}
