package mocks

import (
	"fmt"

	"github.com/containerd/containerd/mount"
)

// MountCall records a Mount invocation.
type MountCall struct {
	Source string
	Target string
	Type   string
}

// UnmountCall records an Unmount invocation.
type UnmountCall struct {
	Target string
	Flags  int
}

// FakeMounter records mount table changes instead of performing them.
type FakeMounter struct {
	Mounts   []MountCall
	Unmounts []UnmountCall
	// FailMount makes Mount fail for the given "source:target" pairs.
	FailMount map[string]error
	// FailUnmount makes Unmount fail for the given targets.
	FailUnmount map[string]error
	Magic       uint32
	MagicErr    error
}

func NewFakeMounter() *FakeMounter {
	return &FakeMounter{
		FailMount:   map[string]error{},
		FailUnmount: map[string]error{},
	}
}

func (f *FakeMounter) Mount(m mount.Mount, target string) error {
	f.Mounts = append(f.Mounts, MountCall{Source: m.Source, Target: target, Type: m.Type})
	return f.FailMount[fmt.Sprintf("%s:%s", m.Source, target)]
}

func (f *FakeMounter) Unmount(target string, flags int) error {
	f.Unmounts = append(f.Unmounts, UnmountCall{Target: target, Flags: flags})
	return f.FailUnmount[target]
}

func (f *FakeMounter) FsMagic(_ string) (uint32, error) {
	return f.Magic, f.MagicErr
}

// MountedAt returns the sources bind mounted on target, in call order.
func (f *FakeMounter) MountedAt(target string) []string {
	var sources []string
	for _, m := range f.Mounts {
		if m.Target == target {
			sources = append(sources, m.Source)
		}
	}
	return sources
}
