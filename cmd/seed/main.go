package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

// Seeds a small demo data set: two users, two time-bounded areas, a channel
// with a few messages and a reaction. Intended for local development against
// an already-migrated database.
var (
	dsn     = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	dryRun  = flag.Bool("dry-run", false, "Print what would be inserted; no DB writes")
	confirm = flag.Bool("confirm", false, "Required to write demo data")
)

type seedUser struct {
	id, email, username string
}

func main() {
	flag.Parse()
	_ = godotenv.Load(".env.local")

	connStr := *dsn
	if connStr == "" {
		connStr = os.Getenv("DATABASE_URL")
	}
	if connStr == "" {
		log.Fatal("no DSN: pass -dsn or set DATABASE_URL")
	}

	alice := seedUser{uuid.NewString(), "alice@example.com", "Alice"}
	bob := seedUser{uuid.NewString(), "bob@example.com", "Bob"}

	// Two areas over the same park: one active through the 90s, one current.
	parkRing := []float64{0, 0, 10, 0, 10, 10, 0, 10}

	if *dryRun {
		fmt.Println("dry run: would insert 2 users, 2 areas, 1 channel, 3 messages")
		return
	}
	if !*confirm {
		log.Fatal("refusing to write without -confirm")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	for _, u := range []seedUser{alice, bob} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO core.users (id, email, username, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (email) DO NOTHING
		`, u.id, u.email, u.username); err != nil {
			log.Fatalf("insert user %s: %v", u.username, err)
		}
	}

	ninetiesPark := uuid.NewString()
	currentPark := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO core.areas (id, name, ring, start_year, end_year, created_by, created_at, updated_at)
		VALUES
			($1, 'Riverside Park (90s)', $3, 1990, 1999, $4, now(), now()),
			($2, 'Riverside Park',       $3, 2020, 2030, $4, now(), now())
	`, ninetiesPark, currentPark, pq.Array(parkRing), alice.id); err != nil {
		log.Fatalf("insert areas: %v", err)
	}

	channelID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messaging.channels (id, name, area_id, created_by, is_private, created_at, updated_at)
		VALUES ($1, 'general', $2, $3, false, now(), now())
	`, channelID, currentPark, alice.id); err != nil {
		log.Fatalf("insert channel: %v", err)
	}
	for i, u := range []seedUser{alice, bob} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messaging.channel_memberships (id, channel_id, user_id, is_admin, joined_at)
			VALUES ($1, $2, $3, $4, now())
		`, uuid.NewString(), channelID, u.id, i == 0); err != nil {
			log.Fatalf("insert membership for %s: %v", u.username, err)
		}
	}

	messages := []struct {
		author     seedUser
		content    string
		anonymous  bool
		restricted []string
	}{
		{alice, "Anyone else remember the old bandstand?", false, nil},
		{bob, "Left a note by the fountain.", true, nil},
		{alice, "Bob, check the north gate.", false, []string{"Bob"}},
	}
	firstMessageID := ""
	for i, m := range messages {
		id := uuid.NewString()
		if firstMessageID == "" {
			firstMessageID = id
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messaging.messages
				(id, channel_id, author_id, content, is_anonymous, contains_pii, restricted_to_names, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, false, $6, now() + make_interval(secs => $7), now())
		`, id, channelID, m.author.id, m.content, m.anonymous, pq.Array(m.restricted), i); err != nil {
			log.Fatalf("insert message: %v", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messaging.message_reactions (id, message_id, user_id, kind, created_at)
		VALUES ($1, $2, $3, 'like', now())
	`, uuid.NewString(), firstMessageID, bob.id); err != nil {
		log.Fatalf("insert reaction: %v", err)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}
	fmt.Println("✓ Seeded demo users, areas, channel, and messages")
}
