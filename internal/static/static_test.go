package static_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/edgecache/internal/static"
)

var _ = Describe("Routes", func() {
	var r *static.Routes

	BeforeEach(func() {
		r = static.New()
	})

	Describe("Download", func() {
		Context("when setting download flag", func() {
			It("should mark file as downloadable", func() {
				r.SetDownload("assets/report.pdf", true)
				Expect(r.IsDownload("assets/report.pdf")).To(BeTrue())
			})

			It("should toggle download flag", func() {
				r.SetDownload("assets/report.pdf", true)
				Expect(r.IsDownload("assets/report.pdf")).To(BeTrue())

				r.SetDownload("assets/report.pdf", false)
				Expect(r.IsDownload("assets/report.pdf")).To(BeFalse())
			})
		})

		Context("when path is empty", func() {
			It("should not set download flag", func() {
				r.SetDownload("", true)
				Expect(r.IsDownload("")).To(BeFalse())
			})
		})
	})

	Describe("Index", func() {
		It("should set and get index for a route", func() {
			r.SetIndex("", "/", "index.html")
			Expect(r.GetIndex("", "/")).To(Equal("index.html"))
			Expect(r.IsIndex("index.html")).To(BeTrue())
		})

		It("should set index for a route with a group", func() {
			r.SetIndex("/docs", "/guide", "guide/index.html")
			Expect(r.GetIndex("/docs", "/guide")).To(Equal("guide/index.html"))
			Expect(r.GetIndex("", "/guide")).To(Equal(""))
		})
	})

	Describe("Redirect", func() {
		It("should register and resolve an alias", func() {
			r.SetRedirect("/old", "/new")
			dst, ok := r.GetRedirect("/old")
			Expect(ok).To(BeTrue())
			Expect(dst).To(Equal("/new"))
		})

		It("should report no redirect for an unregistered source", func() {
			_, ok := r.GetRedirect("/missing")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("LoadFromConfig", func() {
		It("should seed all three overlays from config tables", func() {
			r.LoadFromConfig(
				map[string]string{"/": "index.html"},
				[]string{"downloads/file.zip"},
				map[string]string{"/old": "/new"},
			)

			Expect(r.GetIndex("", "/")).To(Equal("index.html"))
			Expect(r.IsDownload("downloads/file.zip")).To(BeTrue())
			dst, ok := r.GetRedirect("/old")
			Expect(ok).To(BeTrue())
			Expect(dst).To(Equal("/new"))
		})
	})
})
