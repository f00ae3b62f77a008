// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package access_test

import (
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/myjournal/myjournal/internal/access"
	"github.com/myjournal/myjournal/internal/auth"
)

var _ = Describe("Guard", func() {
	var (
		entries *access.Guard
		users   *access.Guard

		alice *auth.Principal
		bob   *auth.Principal
		carol *auth.Principal

		aliceEntry ulid.ULID
	)

	BeforeEach(func() {
		entries = access.NewGuard("entry")
		users = access.NewGuard("user")

		alice = &auth.Principal{ID: ulid.Make(), Email: "alice@example.com"}
		bob = &auth.Principal{ID: ulid.Make(), Email: "bob@example.com"}
		carol = &auth.Principal{ID: ulid.Make(), Email: "carol@example.com", IsAdmin: true}

		// Entries carry their creator as owner.
		aliceEntry = alice.ID
	})

	Context("when alice owns an entry", func() {
		DescribeTable("alice",
			func(op access.Operation) {
				Expect(entries.CanAccess(alice, aliceEntry, op)).To(BeTrue())
			},
			Entry("reads it", access.Read),
			Entry("modifies it", access.Modify),
			Entry("deletes it", access.Delete),
		)

		DescribeTable("bob",
			func(op access.Operation) {
				Expect(entries.CanAccess(bob, aliceEntry, op)).To(BeFalse())
				Expect(entries.Authorize(bob, aliceEntry, op)).To(MatchError(access.ErrNotAuthorized))
			},
			Entry("cannot read it", access.Read),
			Entry("cannot modify it", access.Modify),
			Entry("cannot delete it", access.Delete),
		)

		DescribeTable("carol, an admin,",
			func(op access.Operation) {
				Expect(entries.CanAccess(carol, aliceEntry, op)).To(BeTrue())
			},
			Entry("reads it", access.Read),
			Entry("modifies it", access.Modify),
			Entry("deletes it", access.Delete),
		)
	})

	Context("for user records", func() {
		It("lets a user manage themself", func() {
			Expect(users.CanAccess(bob, bob.ID, access.Modify)).To(BeTrue())
			Expect(users.CanAccess(bob, bob.ID, access.Delete)).To(BeTrue())
		})

		It("stops a user from touching another account", func() {
			Expect(users.CanAccess(bob, alice.ID, access.Read)).To(BeFalse())
			Expect(users.CanAccess(bob, carol.ID, access.Modify)).To(BeFalse())
		})

		It("lets an admin manage any account", func() {
			Expect(users.CanAccess(carol, alice.ID, access.Delete)).To(BeTrue())
		})

		It("reserves listing accounts for admins", func() {
			Expect(users.RequireAdmin(carol, access.Read)).To(Succeed())
			Expect(users.RequireAdmin(alice, access.Read)).To(MatchError(access.ErrNotAuthorized))
		})
	})

	Context("when the admin flag changes", func() {
		It("takes effect on the next decision", func() {
			Expect(entries.CanAccess(bob, aliceEntry, access.Read)).To(BeFalse())
			bob.IsAdmin = true
			Expect(entries.CanAccess(bob, aliceEntry, access.Read)).To(BeTrue())
			bob.IsAdmin = false
			Expect(entries.CanAccess(bob, aliceEntry, access.Read)).To(BeFalse())
		})
	})

	Context("without an authenticated principal", func() {
		It("denies everything", func() {
			Expect(entries.CanAccess(nil, aliceEntry, access.Read)).To(BeFalse())
		})
	})
})
