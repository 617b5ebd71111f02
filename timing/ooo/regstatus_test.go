package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/timing/ooo"
)

var _ = Describe("RegisterStatus", func() {
	var status *ooo.RegisterStatus

	t1 := ooo.Tag{Index: 1, Epoch: 1}
	t2 := ooo.Tag{Index: 2, Epoch: 1}

	BeforeEach(func() {
		status = ooo.NewRegisterStatus()
	})

	It("should start with no producers", func() {
		busy, _ := status.Query(5, false)
		Expect(busy).To(BeFalse())
		Expect(status.Pending()).To(BeZero())
	})

	It("should return the registered producer", func() {
		status.Register(5, false, t1, 1)

		busy, tag := status.Query(5, false)
		Expect(busy).To(BeTrue())
		Expect(tag).To(Equal(t1))
	})

	It("should keep integer and floating-point files apart", func() {
		status.Register(5, true, t1, 1)

		busy, _ := status.Query(5, false)
		Expect(busy).To(BeFalse())
		busy, _ = status.Query(5, true)
		Expect(busy).To(BeTrue())
	})

	It("should never track x0", func() {
		status.Register(0, false, t1, 1)

		busy, _ := status.Query(0, false)
		Expect(busy).To(BeFalse())
	})

	It("should track f0", func() {
		status.Register(0, true, t1, 1)

		busy, _ := status.Query(0, true)
		Expect(busy).To(BeTrue())
	})

	It("should let the newest writer replace the mapping", func() {
		status.Register(5, false, t1, 1)
		status.Register(5, false, t2, 2)

		_, tag := status.Query(5, false)
		Expect(tag).To(Equal(t2))
		Expect(status.Pending()).To(Equal(1))
	})

	It("should only end the dependency of the current producer", func() {
		status.Register(5, false, t1, 1)
		status.Register(5, false, t2, 2)

		status.EndDependency(5, false, t1)
		busy, _ := status.Query(5, false)
		Expect(busy).To(BeTrue())

		status.EndDependency(5, false, t2)
		busy, _ = status.Query(5, false)
		Expect(busy).To(BeFalse())
	})

	It("should tell a reused slot from its previous generation", func() {
		status.Register(5, false, ooo.Tag{Index: 1, Epoch: 2}, 9)

		status.EndDependency(5, false, t1)

		busy, _ := status.Query(5, false)
		Expect(busy).To(BeTrue())
	})

	It("should squash only younger producers", func() {
		status.Register(5, false, t1, 1)
		status.Register(6, true, t2, 2)

		status.Squash(1)

		busy, _ := status.Query(5, false)
		Expect(busy).To(BeTrue())
		busy, _ = status.Query(6, true)
		Expect(busy).To(BeFalse())
	})

	It("should panic on an out-of-range register", func() {
		Expect(func() { status.Query(32, false) }).To(PanicWith(ContainSubstring("out of range")))
		Expect(func() { status.Register(40, true, t1, 1) }).To(Panic())
	})

	It("should clear everything on reset", func() {
		status.Register(5, false, t1, 1)
		status.Reset()

		Expect(status.Pending()).To(BeZero())
	})
})
