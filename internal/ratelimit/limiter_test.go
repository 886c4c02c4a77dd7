package ratelimit_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/edgecache/internal/ratelimit"
)

var _ = Describe("Limiter", func() {
	var (
		lim *ratelimit.Limiter
		cfg ratelimit.Config
		now time.Time
	)

	BeforeEach(func() {
		cfg = ratelimit.Config{
			TableSize:      16,
			RequestLimit:   3,
			Window:         time.Minute,
			ConcurrentCap:  2,
			ViolationLimit: 2,
			BanDuration:    10 * time.Minute,
		}
		lim = ratelimit.New(cfg)
		now = time.Now()
	})

	Context("an IP with no prior entry", func() {
		It("is admitted by default", func() {
			Expect(lim.Admit("203.0.113.1", now)).To(Equal(ratelimit.Admitted))
		})
	})

	Context("concurrent connection cap", func() {
		It("rejects TooManyConcurrent once the cap is reached", func() {
			Expect(lim.Admit("203.0.113.2", now)).To(Equal(ratelimit.Admitted))
			Expect(lim.Admit("203.0.113.2", now)).To(Equal(ratelimit.Admitted))
			Expect(lim.Admit("203.0.113.2", now)).To(Equal(ratelimit.TooManyConcurrent))
		})

		It("admits again after a Release", func() {
			Expect(lim.Admit("203.0.113.3", now)).To(Equal(ratelimit.Admitted))
			Expect(lim.Admit("203.0.113.3", now)).To(Equal(ratelimit.Admitted))
			lim.Release("203.0.113.3")
			Expect(lim.Admit("203.0.113.3", now)).To(Equal(ratelimit.Admitted))
		})
	})

	Context("request window threshold", func() {
		It("rejects WindowExceeded past the configured request limit", func() {
			ip := "203.0.113.4"
			for i := 0; i < cfg.RequestLimit; i++ {
				lim.Admit(ip, now)
				lim.Release(ip)
			}
			Expect(lim.Admit(ip, now)).To(Equal(ratelimit.WindowExceeded))
		})

		It("bans after reaching the violation threshold", func() {
			ip := "203.0.113.5"

			// Drive past the request limit enough times to accrue
			// ViolationLimit separate WindowExceeded verdicts.
			for i := 0; i < cfg.RequestLimit; i++ {
				lim.Admit(ip, now)
				lim.Release(ip)
			}
			for v := 0; v < cfg.ViolationLimit; v++ {
				Expect(lim.Admit(ip, now)).To(Equal(ratelimit.WindowExceeded))
				lim.Release(ip)
			}

			Expect(lim.Admit(ip, now)).To(Equal(ratelimit.Banned))
			Expect(lim.Admit(ip, now.Add(cfg.BanDuration+time.Second))).ToNot(Equal(ratelimit.Banned))
		})
	})

	Context("development mode", func() {
		It("admits unconditionally while still tracking counters", func() {
			cfg.DevMode = true
			lim = ratelimit.New(cfg)
			ip := "203.0.113.6"
			for i := 0; i < cfg.RequestLimit+10; i++ {
				Expect(lim.Admit(ip, now)).To(Equal(ratelimit.Admitted))
			}
		})
	})

	Context("sweep", func() {
		It("removes entries idle beyond four windows with no active ban", func() {
			ip := "203.0.113.7"
			lim.Admit(ip, now)
			lim.Release(ip)

			removed := lim.Sweep(now.Add(5 * cfg.Window))
			Expect(removed).To(Equal(1))
		})

		It("does not remove entries under active ban", func() {
			ip := "203.0.113.8"
			for v := 0; v < cfg.ViolationLimit; v++ {
				for i := 0; i < cfg.RequestLimit; i++ {
					lim.Admit(ip, now)
					lim.Release(ip)
				}
				lim.Admit(ip, now)
				lim.Release(ip)
			}

			removed := lim.Sweep(now.Add(5 * cfg.Window))
			Expect(removed).To(Equal(0))
		})
	})
})
