package state_test

import (
	"bytes"
	"errors"
	"os"

	cnst "github.com/kairos-io/stageinit/internal/constants"
	"github.com/kairos-io/stageinit/internal/mocks"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/kairos-io/stageinit/pkg/state"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4/vfst"
)

// vendorInit looks enough like an init binary referencing the system init twice.
var vendorInit = []byte("\x7fELF\x00\x00/system/bin/init\x00selinux_setup\x00/system/bin/init\x00")

var _ = Describe("First stage", func() {
	var fs *vfst.TestFS
	var cleanup func()
	var mounter *mocks.FakeMounter
	var s *state.State

	newState := func(root map[string]interface{}) {
		var err error
		fs, cleanup, err = vfst.NewTestFS(root)
		Expect(err).ToNot(HaveOccurred())
		mounter = mocks.NewFakeMounter()
		s = &state.State{FS: fs, Mounter: mounter, Argv: []string{"/init"}}
	}

	AfterEach(func() {
		cleanup()
	})

	Describe("DetectLayout", func() {
		It("is two stage when no storage mountpoint exists", func() {
			newState(map[string]interface{}{"/init": "stageinit"})
			Expect(s.DetectLayout()).To(Equal(schema.TwoStage))
		})
		It("is single stage when /sdcard exists", func() {
			newState(map[string]interface{}{"/init": "stageinit", "/sdcard": &vfst.Dir{Perm: 0o755}})
			Expect(s.DetectLayout()).To(Equal(schema.SingleStage))
		})
		It("is single stage when the first stage ramdisk has a storage mountpoint", func() {
			newState(map[string]interface{}{"/init": "stageinit", "/first_stage_ramdisk/sdcard": &vfst.Dir{Perm: 0o755}})
			Expect(s.DetectLayout()).To(Equal(schema.SingleStage))
		})
		It("counts a dangling symlink as present", func() {
			newState(map[string]interface{}{"/init": "stageinit", "/sdcard": &vfst.Symlink{Target: "/storage/self/primary"}})
			Expect(s.DetectLayout()).To(Equal(schema.SingleStage))
		})
	})

	Describe("StorageSymlink", func() {
		It("links the storage self entry to the system init", func() {
			newState(map[string]interface{}{"/init": "stageinit"})
			Expect(s.StorageSymlink()).To(Succeed())
			target, err := fs.Readlink("/storage/self/primary")
			Expect(err).ToNot(HaveOccurred())
			Expect(target).To(HaveSuffix(cnst.SystemRealInit))
			fi, err := fs.Stat("/storage/self")
			Expect(err).ToNot(HaveOccurred())
			Expect(fi.IsDir()).To(BeTrue())
			Expect(fi.Mode().Perm()).To(Equal(os.FileMode(0o755)))
		})
		It("uses the first stage ramdisk when forcing a normal boot", func() {
			newState(map[string]interface{}{"/init": "stageinit"})
			s.Config.ForceNormalBoot = true
			Expect(s.StorageSymlink()).To(Succeed())
			target, err := fs.Readlink("/first_stage_ramdisk/storage/self/primary")
			Expect(err).ToNot(HaveOccurred())
			Expect(target).To(HaveSuffix(cnst.SystemRealInit))
			_, err = fs.Lstat(cnst.RamdiskSdcard)
			Expect(err).ToNot(HaveOccurred())
			_, err = fs.Lstat("/storage/self/primary")
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
		It("reports an already existing entry", func() {
			newState(map[string]interface{}{"/init": "stageinit", "/storage/self/primary": "taken"})
			Expect(s.StorageSymlink()).ToNot(Succeed())
		})
	})

	Describe("MoveInit", func() {
		It("moves init into the storage mountpoint", func() {
			newState(map[string]interface{}{"/init": "stageinit"})
			Expect(s.MoveInit()).To(Succeed())
			content, err := fs.ReadFile(cnst.Sdcard)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("stageinit"))
			_, err = fs.Lstat(cnst.Init)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
		It("fails when there is nothing to move", func() {
			newState(map[string]interface{}{"/data": &vfst.Dir{Perm: 0o755}})
			Expect(s.MoveInit()).ToNot(Succeed())
		})
	})

	Describe("BindInit", func() {
		It("binds the moved init onto itself", func() {
			newState(map[string]interface{}{"/sdcard": "stageinit"})
			Expect(s.BindInit()).To(Succeed())
			Expect(mounter.Mounts).To(HaveLen(1))
			Expect(mounter.Mounts[0]).To(Equal(mocks.MountCall{Source: cnst.Sdcard, Target: cnst.Sdcard, Type: "bind"}))
		})
		It("falls back to the data copy exactly once", func() {
			newState(map[string]interface{}{"/sdcard": "stageinit", "/data/magiskinit": "stageinit"})
			mounter.FailMount["/sdcard:/sdcard"] = errors.New("EINVAL")
			Expect(s.BindInit()).To(Succeed())
			Expect(mounter.MountedAt(cnst.Sdcard)).To(Equal([]string{cnst.Sdcard, cnst.MagiskInit}))
		})
		It("still attempts the fallback when the data copy is missing", func() {
			newState(map[string]interface{}{"/sdcard": "stageinit"})
			mounter.FailMount["/sdcard:/sdcard"] = errors.New("EINVAL")
			mounter.FailMount["/data/magiskinit:/sdcard"] = errors.New("ENOENT")
			err := s.BindInit()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(cnst.Sdcard))
			Expect(mounter.MountedAt(cnst.Sdcard)).To(Equal([]string{cnst.Sdcard, cnst.MagiskInit}))
		})
	})

	Describe("PatchInit", func() {
		It("redirects every reference to the system init", func() {
			newState(map[string]interface{}{"/init": vendorInit, "/sdcard": &vfst.Dir{Perm: 0o755}})
			Expect(s.PatchInit()).To(Succeed())
			content, err := fs.ReadFile(cnst.Init)
			Expect(err).ToNot(HaveOccurred())
			Expect(content).To(HaveLen(len(vendorInit)))
			Expect(bytes.Count(content, []byte(cnst.MagiskInit))).To(Equal(2))
			Expect(bytes.Contains(content, []byte(cnst.RealInit))).To(BeFalse())
			Expect(bytes.Contains(content, []byte("selinux_setup"))).To(BeTrue())
		})
		It("leaves an unrelated init alone", func() {
			newState(map[string]interface{}{"/init": "nothing here"})
			Expect(s.PatchInit()).To(Succeed())
			content, err := fs.ReadFile(cnst.Init)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(content)).To(Equal("nothing here"))
		})
		It("fails without an init", func() {
			newState(map[string]interface{}{"/sdcard": &vfst.Dir{Perm: 0o755}})
			Expect(s.PatchInit()).ToNot(Succeed())
		})
	})
})
