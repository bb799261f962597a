package patch_test

import (
	"bytes"

	"github.com/kairos-io/stageinit/pkg/patch"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

var (
	from = []byte("/system/bin/init")
	to   = []byte("/data/magiskinit")
)

var _ = Describe("Patch", func() {
	It("replaces every occurrence and reports the offsets", func() {
		buf := []byte("\x7fELF..../system/bin/init\x00xx/system/bin/init\x00")
		size := len(buf)
		offsets, err := patch.Patch(buf, from, to)
		Expect(err).ToNot(HaveOccurred())
		Expect(offsets).To(Equal([]int{8, 27}))
		Expect(buf).To(HaveLen(size))
		Expect(bytes.Count(buf, to)).To(Equal(2))
		Expect(bytes.Contains(buf, from)).To(BeFalse())
	})
	It("does nothing when there is no match", func() {
		buf := []byte("nothing to see here")
		offsets, err := patch.Patch(buf, from, to)
		Expect(err).ToNot(HaveOccurred())
		Expect(offsets).To(BeEmpty())
		Expect(string(buf)).To(Equal("nothing to see here"))
	})
	It("does not match overlapping occurrences twice", func() {
		buf := []byte("aaaa")
		offsets, err := patch.Patch(buf, []byte("aa"), []byte("bb"))
		Expect(err).ToNot(HaveOccurred())
		Expect(offsets).To(Equal([]int{0, 2}))
		Expect(string(buf)).To(Equal("bbbb"))
	})
	It("matches at the very end of the buffer", func() {
		buf := append([]byte("xx"), from...)
		offsets, err := patch.Patch(buf, from, to)
		Expect(err).ToNot(HaveOccurred())
		Expect(offsets).To(Equal([]int{2}))
		Expect(buf[2:]).To(Equal(to))
	})
	It("refuses replacements of a different length and leaves the buffer alone", func() {
		buf := []byte("/system/bin/init")
		_, err := patch.Patch(buf, from, []byte("/sbin/init"))
		Expect(err).To(MatchError(patch.ErrLengthMismatch))
		Expect(buf).To(Equal(from))
	})
	It("refuses an empty pattern", func() {
		_, err := patch.Patch([]byte("abc"), nil, nil)
		Expect(err).To(MatchError(patch.ErrEmptyPattern))
	})
})

var _ = Describe("MappedFile", func() {
	var fs vfs.FS
	var cleanup func()

	BeforeEach(func() {
		var err error
		fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
			"/init":  "head/system/bin/init-tail",
			"/empty": "",
		})
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		cleanup()
	})

	It("writes patches through to the file when opened read-write", func() {
		mf, err := patch.OpenRW(fs, "/init")
		Expect(err).ToNot(HaveOccurred())
		offsets, err := mf.Patch(from, to)
		Expect(err).ToNot(HaveOccurred())
		Expect(offsets).To(Equal([]int{4}))
		Expect(mf.Close()).To(Succeed())

		content, err := fs.ReadFile("/init")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(Equal("head/data/magiskinit-tail"))
	})
	It("keeps the file untouched when opened private", func() {
		mf, err := patch.OpenPrivate(fs, "/init")
		Expect(err).ToNot(HaveOccurred())
		_, err = mf.Patch(from, to)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(mf.Bytes())).To(Equal("head/data/magiskinit-tail"))
		Expect(mf.Close()).To(Succeed())

		content, err := fs.ReadFile("/init")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(Equal("head/system/bin/init-tail"))
	})
	It("handles empty files", func() {
		mf, err := patch.OpenRW(fs, "/empty")
		Expect(err).ToNot(HaveOccurred())
		offsets, err := mf.Patch(from, to)
		Expect(err).ToNot(HaveOccurred())
		Expect(offsets).To(BeEmpty())
		Expect(mf.Close()).To(Succeed())
	})
	It("fails on missing files", func() {
		_, err := patch.OpenRW(fs, "/missing")
		Expect(err).To(HaveOccurred())
	})
})
