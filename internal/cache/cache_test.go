package cache_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/edgecache/internal/cache"
)

var _ = Describe("Cache", func() {
	var (
		c   *cache.Cache
		cfg cache.Config
		now time.Time
	)

	BeforeEach(func() {
		cfg = cache.Config{
			Slots:       8,
			TTL:         time.Minute,
			PerEntryCap: 1024,
			GlobalCap:   2048,
			PurgeEvery:  time.Hour,
		}
		c = cache.New(cfg)
		now = time.Now()
	})

	Context("round trip", func() {
		It("serves a byte-identical entry on the next matching lookup", func() {
			body := []byte("<html>hello</html>")
			Expect(c.Insert("/index.html", cache.EncodingNone, `"abc"`, body, now)).To(Equal(cache.SkipNone))

			e, ok := c.Lookup("/index.html", cache.EncodingNone, now)
			Expect(ok).To(BeTrue())
			Expect(e.Bytes).To(Equal(body))
			Expect(e.ETag).To(Equal(`"abc"`))
		})

		It("misses on a different vary key", func() {
			c.Insert("/style.css", cache.EncodingNone, `"x"`, []byte("body{}"), now)
			_, ok := c.Lookup("/style.css", cache.EncodingGzip, now)
			Expect(ok).To(BeFalse())
		})
	})

	Context("TTL freshness", func() {
		It("does not return an entry older than TTL", func() {
			c.Insert("/a.txt", cache.EncodingNone, `"a"`, []byte("a"), now)
			_, ok := c.Lookup("/a.txt", cache.EncodingNone, now.Add(2*cfg.TTL))
			Expect(ok).To(BeFalse())
		})
	})

	Context("per-entry cap", func() {
		It("skips an insert larger than the per-entry cap", func() {
			big := make([]byte, cfg.PerEntryCap+1)
			reason := c.Insert("/big.bin", cache.EncodingNone, `"big"`, big, now)
			Expect(reason).To(Equal(cache.SkipTooLarge))
		})
	})

	Context("global cap", func() {
		It("skips an insert that would exceed the global cap", func() {
			chunk := make([]byte, cfg.PerEntryCap)
			Expect(c.Insert("/1.bin", cache.EncodingNone, `"1"`, chunk, now)).To(Equal(cache.SkipNone))
			Expect(c.Insert("/2.bin", cache.EncodingNone, `"2"`, chunk, now)).To(Equal(cache.SkipNone))
			reason := c.Insert("/3.bin", cache.EncodingNone, `"3"`, chunk, now)
			Expect(reason).To(Equal(cache.SkipGlobalCap))
		})
	})

	Context("stats", func() {
		It("counts hits, misses, and bytes in use", func() {
			c.Insert("/z.txt", cache.EncodingNone, `"z"`, []byte("zzz"), now)
			c.Lookup("/z.txt", cache.EncodingNone, now)
			c.Lookup("/nope.txt", cache.EncodingNone, now)

			s := c.Stats()
			Expect(s.Hits).To(Equal(uint64(1)))
			Expect(s.Misses).To(Equal(uint64(1)))
			Expect(s.BytesUsed).To(Equal(int64(3)))
		})
	})
})
