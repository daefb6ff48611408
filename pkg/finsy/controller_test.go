package finsy

import (
	"errors"
	"testing"

	"github.com/finsy-network/finsy/pkg/util"
)

func TestControllerAddRemove(t *testing.T) {
	s1 := demoSwitch(t)
	c, err := NewController(s1)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 || c.Get("s1") != s1 {
		t.Errorf("controller contents: len=%d", c.Len())
	}
	if s1.Controller() != c {
		t.Error("switch should point back at its controller")
	}

	dup, _ := NewSwitch("s1", "other:50001", SwitchOptions{})
	if err := c.Add(dup); !errors.Is(err, util.ErrAlreadyExists) {
		t.Errorf("duplicate add = %v", err)
	}

	done, err := c.Remove("s1")
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	default:
		t.Error("removing a stopped switch should complete immediately")
	}
	if c.Len() != 0 || s1.Controller() != nil {
		t.Error("switch not detached")
	}

	if _, err := c.Remove("s1"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("second remove = %v", err)
	}
}

func TestControllerAll(t *testing.T) {
	b, _ := NewSwitch("b", "h:1", SwitchOptions{})
	a, _ := NewSwitch("a", "h:2", SwitchOptions{})
	c, err := NewController(b, a)
	if err != nil {
		t.Fatal(err)
	}
	all := c.All()
	if len(all) != 2 || all[0].Name() != "a" || all[1].Name() != "b" {
		t.Errorf("All = %v", all)
	}
}

func TestControllerDuplicateInConstructor(t *testing.T) {
	x, _ := NewSwitch("x", "h:1", SwitchOptions{})
	y, _ := NewSwitch("x", "h:2", SwitchOptions{})
	if _, err := NewController(x, y); !errors.Is(err, util.ErrAlreadyExists) {
		t.Errorf("NewController = %v", err)
	}
}
