package gateway_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltmart/payments/internal/gateway"
)

var _ = Describe("ReconstructTransactionTimestamp", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	})

	Context("when the transaction happened recently", func() {
		It("should assume the current year", func() {
			ts, ambiguous, err := gateway.ReconstructTransactionTimestamp("0314", "183000", now)

			Expect(err).NotTo(HaveOccurred())
			Expect(ambiguous).To(BeFalse())
			Expect(ts).To(Equal(time.Date(2026, time.March, 14, 18, 30, 0, 0, time.UTC)))
		})

		It("should tolerate clock skew within the slack window", func() {
			ts, ambiguous, err := gateway.ReconstructTransactionTimestamp("0316", "090000", now)

			Expect(err).NotTo(HaveOccurred())
			Expect(ambiguous).To(BeFalse())
			Expect(ts.Year()).To(Equal(2026))
		})
	})

	Context("when the current-year assumption lands in the future", func() {
		It("should roll back a year and flag the result ambiguous", func() {
			january := time.Date(2026, time.January, 2, 10, 0, 0, 0, time.UTC)

			ts, ambiguous, err := gateway.ReconstructTransactionTimestamp("1230", "235900", january)

			Expect(err).NotTo(HaveOccurred())
			Expect(ambiguous).To(BeTrue())
			Expect(ts).To(Equal(time.Date(2025, time.December, 30, 23, 59, 0, 0, time.UTC)))
		})
	})

	Context("when the input is malformed", func() {
		It("should reject a date that is not MMDD", func() {
			_, _, err := gateway.ReconstructTransactionTimestamp("123", "120000", now)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a time that is not HHMMSS", func() {
			_, _, err := gateway.ReconstructTransactionTimestamp("0314", "1200", now)
			Expect(err).To(HaveOccurred())
		})

		It("should reject non-numeric fields", func() {
			_, _, err := gateway.ReconstructTransactionTimestamp("ab14", "120000", now)
			Expect(err).To(HaveOccurred())
		})

		It("should reject out-of-range fields", func() {
			_, _, err := gateway.ReconstructTransactionTimestamp("1314", "120000", now)
			Expect(err).To(HaveOccurred())

			_, _, err = gateway.ReconstructTransactionTimestamp("0314", "250000", now)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a calendar date that does not exist", func() {
			_, _, err := gateway.ReconstructTransactionTimestamp("0230", "120000", now)
			Expect(err).To(HaveOccurred())
		})
	})
})
