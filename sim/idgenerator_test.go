package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/xid"
)

var _ = Describe("IDGenerator", func() {
	It("should count up sequential IDs", func() {
		g := &sequentialIDGenerator{}

		Expect(g.Generate()).To(Equal("1"))
		Expect(g.Generate()).To(Equal("2"))
	})

	It("should generate unique xid IDs in parallel mode", func() {
		g := parallelIDGenerator{}
		ids := make(chan string, 64)

		for i := 0; i < cap(ids); i++ {
			go func() { ids <- g.Generate() }()
		}

		seen := make(map[string]bool)
		for i := 0; i < cap(ids); i++ {
			id := <-ids
			_, err := xid.FromString(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).NotTo(HaveKey(id))
			seen[id] = true
		}
	})

	It("should refuse to switch generators once IDs are handed out", func() {
		GetIDGenerator().Generate()

		Expect(UseParallelIDGenerator).To(Panic())
	})
})
