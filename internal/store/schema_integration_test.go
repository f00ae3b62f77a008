// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

func insertUser(ctx context.Context, email string) (string, error) {
	id := ulid.Make().String()
	_, err := suitePool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, salt, kdf, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, now(), now())
	`, id, email, []byte("hash"), []byte("salt"), "argon2id$v=19$m=65536,t=1,p=4,l=32")
	return id, err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ = Describe("Schema", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		DeferCleanup(func() {
			_, err := suitePool.Exec(context.Background(), `DELETE FROM users`)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("users", func() {
		It("rejects emails differing only in case", func() {
			_, err := insertUser(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())

			_, err = insertUser(ctx, "Alice@Example.com")
			Expect(err).To(HaveOccurred())
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})
	})

	Describe("cascading deletes", func() {
		It("removes sessions and entries with their owner", func() {
			userID, err := insertUser(ctx, "bob@example.com")
			Expect(err).NotTo(HaveOccurred())

			_, err = suitePool.Exec(ctx, `
				INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, ulid.Make().String(), userID, "hash-1", time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())

			_, err = suitePool.Exec(ctx, `
				INSERT INTO entries (id, owner_id, entry_date, mood, body, updated_at)
				VALUES ($1, $2, now(), 'calm', 'walked the dog', now())
			`, ulid.Make().String(), userID)
			Expect(err).NotTo(HaveOccurred())

			_, err = suitePool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
			Expect(err).NotTo(HaveOccurred())

			var sessions, entries int
			Expect(suitePool.QueryRow(ctx, `SELECT count(*) FROM sessions WHERE user_id = $1`, userID).Scan(&sessions)).To(Succeed())
			Expect(suitePool.QueryRow(ctx, `SELECT count(*) FROM entries WHERE owner_id = $1`, userID).Scan(&entries)).To(Succeed())
			Expect(sessions).To(BeZero())
			Expect(entries).To(BeZero())
		})
	})

	Describe("sessions", func() {
		It("rejects a duplicate token hash", func() {
			userID, err := insertUser(ctx, "carol@example.com")
			Expect(err).NotTo(HaveOccurred())

			insert := `INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at) VALUES ($1, $2, 'same', now(), now())`
			_, err = suitePool.Exec(ctx, insert, ulid.Make().String(), userID)
			Expect(err).NotTo(HaveOccurred())
			_, err = suitePool.Exec(ctx, insert, ulid.Make().String(), userID)
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})
	})
})
