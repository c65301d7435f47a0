package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"faceemotion/internal/dto"
	"faceemotion/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/journal.db", "Journal database path")
	pruneDays := flag.Int("prune-days", 0, "Delete journal entries older than this many days (0 keeps everything)")
	stats := flag.Bool("stats", true, "Print journal statistics")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// New creates the schema when it is missing.
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewInferenceRepository(db)
	fmt.Printf("Journal schema ready at %s\n", *dbPath)

	if *pruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -*pruneDays)
		n, err := repo.DeleteOlderThan(cutoff)
		if err != nil {
			log.Fatalf("Failed to prune journal: %v", err)
		}
		fmt.Printf("Deleted %d entries older than %s\n", n, cutoff.Format(time.RFC3339))
	}

	if !*stats {
		return
	}

	total, err := repo.GetTotalCount(&dto.HistoryFilter{})
	if err != nil {
		log.Fatalf("Failed to count entries: %v", err)
	}
	perLabel, err := repo.CountByLabel()
	if err != nil {
		log.Fatalf("Failed to count labels: %v", err)
	}

	fmt.Printf("\nJournal statistics:\n")
	fmt.Printf("   Total inferences: %d\n", total)
	if len(perLabel) > 0 {
		labels := make([]string, 0, len(perLabel))
		for label := range perLabel {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		fmt.Printf("   Faces per label:\n")
		for _, label := range labels {
			fmt.Printf("      - %s: %d\n", label, perLabel[label])
		}
	}
}
