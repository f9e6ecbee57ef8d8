// kb-dump is a standalone inspection tool for the memora database.
// It uses the pure-Go sqlite driver so it builds anywhere, without cgo.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := filepath.Join(".memora", "memora.db")
	limit := 10
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	if err := dump(dbPath, limit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dump(dbPath string, limit int) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	defer db.Close()

	tables, err := listTables(db)
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s\nTables: %v\n", dbPath, tables)

	if err := dumpNotes(db, limit); err != nil {
		fmt.Printf("No notes table: %v\n", err)
	}
	if err := dumpConversations(db, limit); err != nil {
		fmt.Printf("No conversations table: %v\n", err)
	}
	return nil
}

func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func dumpNotes(db *sql.DB, limit int) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		return err
	}
	fmt.Printf("\n=== notes (%d) ===\n", count)

	rows, err := db.Query(
		"SELECT id, title, tags, length(content), embedding IS NOT NULL FROM notes ORDER BY updated_at DESC LIMIT ?",
		limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, title, tags string
		var contentLen int
		var embedded bool
		if err := rows.Scan(&id, &title, &tags, &contentLen, &embedded); err != nil {
			return err
		}
		marker := " "
		if embedded {
			marker = "*"
		}
		fmt.Printf("  %s %s  %-40s  %s  (%d bytes)\n", marker, id[:8], truncate(title, 40), tags, contentLen)
	}
	return rows.Err()
}

func dumpConversations(db *sql.DB, limit int) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&count); err != nil {
		return err
	}
	fmt.Printf("\n=== conversations (%d) ===\n", count)

	rows, err := db.Query(`
		SELECT c.id, COALESCE(c.room_id, ''), COUNT(t.id)
		FROM conversations c
		LEFT JOIN turns t ON t.conversation_id = c.id
		GROUP BY c.id ORDER BY c.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, room string
		var turns int
		if err := rows.Scan(&id, &room, &turns); err != nil {
			return err
		}
		if room == "" {
			room = "(default)"
		}
		fmt.Printf("  %s  %-20s  %d turns\n", id[:8], room, turns)
	}
	return rows.Err()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
