package discovery

import (
	"fmt"
	"strconv"
)

// Selector picks a single runtime. It is one of ByPid, ByName or Any.
type Selector interface {
	fmt.Stringer
	selector()
}

// ByPid selects the runtime with the given pid.
type ByPid struct {
	PID int
}

// ByName selects the runtime whose package name matches.
type ByName struct {
	Name string
}

// Any selects the only runtime available.
type Any struct{}

func (ByPid) selector()  {}
func (ByName) selector() {}
func (Any) selector()    {}

func (s ByPid) String() string  { return "pid " + strconv.Itoa(s.PID) }
func (s ByName) String() string { return "name " + strconv.Quote(s.Name) }
func (Any) String() string      { return "any" }

// ParseSelector builds a selector from CLI-style inputs. A pid takes
// precedence over a name; neither selects Any.
func ParseSelector(pid int, name string) Selector {
	switch {
	case pid > 0:
		return ByPid{PID: pid}
	case name != "":
		return ByName{Name: name}
	default:
		return Any{}
	}
}
