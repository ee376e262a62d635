package cache_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/code-intel/internal/cache"
	"github.com/flanksource/code-intel/models"
)

var _ = Describe("ASTCache", func() {
	var astCache *cache.ASTCache

	newCache := func(opts cache.Options) *cache.ASTCache {
		c, err := cache.New(opts)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		astCache = newCache(cache.DefaultOptions())
	})

	Describe("New", func() {
		It("should reject a non-positive capacity", func() {
			_, err := cache.New(cache.Options{MaxEntries: 0, TTL: time.Hour})
			Expect(err).To(HaveOccurred())
		})

		It("should reject a non-positive TTL", func() {
			_, err := cache.New(cache.Options{MaxEntries: 10, TTL: 0})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get and Put", func() {
		It("should round-trip a stored value", func() {
			content := []byte("package demo")
			result := &models.ParseResult{FilePath: "demo.go", Language: "go"}

			astCache.Put(content, result, result.SizeEstimate())

			got, ok := astCache.Get(content)
			Expect(ok).To(BeTrue())
			Expect(got).To(BeIdenticalTo(result))
		})

		It("should miss for content never stored", func() {
			_, ok := astCache.Get([]byte("unknown"))
			Expect(ok).To(BeFalse())
		})

		It("should treat misses as data, not failures", func() {
			_, ok := astCache.Get([]byte("unknown"))
			Expect(ok).To(BeFalse())

			stats := astCache.Stats()
			Expect(stats.Misses).To(Equal(int64(1)))
			Expect(stats.HitRate).To(BeZero())
		})
	})

	Describe("LRU eviction", func() {
		BeforeEach(func() {
			astCache = newCache(cache.Options{MaxEntries: 3, TTL: time.Hour})
		})

		It("should never exceed the configured capacity", func() {
			for i := 0; i < 10; i++ {
				astCache.Put([]byte(fmt.Sprintf("file-%d", i)), i, 1)
			}
			Expect(astCache.Len()).To(Equal(3))
			Expect(astCache.Stats().Evictions).To(Equal(int64(7)))
		})

		It("should keep recently accessed entries over stale ones", func() {
			astCache.Put([]byte("a"), "A", 1)
			astCache.Put([]byte("b"), "B", 1)
			astCache.Put([]byte("c"), "C", 1)

			_, ok := astCache.Get([]byte("a"))
			Expect(ok).To(BeTrue())

			astCache.Put([]byte("d"), "D", 1)

			_, ok = astCache.Get([]byte("b"))
			Expect(ok).To(BeFalse(), "b was the least recently used")
			_, ok = astCache.Get([]byte("a"))
			Expect(ok).To(BeTrue())
		})
	})

	Describe("InvalidateAll", func() {
		It("should clear residency but keep lifetime counters", func() {
			astCache.Put([]byte("a"), "A", 1)
			_, _ = astCache.Get([]byte("a"))

			astCache.InvalidateAll()

			stats := astCache.Stats()
			Expect(stats.ResidentCount).To(BeZero())
			Expect(stats.Hits).To(Equal(int64(1)))
		})
	})

	Describe("Stats", func() {
		It("should report top accessed entries in order", func() {
			astCache.Put([]byte("hot"), "H", 1)
			astCache.Put([]byte("cold"), "C", 1)
			for i := 0; i < 3; i++ {
				_, _ = astCache.Get([]byte("hot"))
			}

			stats := astCache.Stats()
			Expect(stats.TopAccessed).NotTo(BeEmpty())
			Expect(stats.TopAccessed[0].Fingerprint).To(Equal(cache.FingerprintOf([]byte("hot")).String()))
			Expect(stats.TopAccessed[0].AccessCount).To(Equal(int64(3)))
		})
	})
})
