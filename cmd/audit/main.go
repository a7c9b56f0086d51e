package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/config"
	"github.com/falconsupport/api/internal/database"
	"github.com/falconsupport/api/internal/scheduler"
	"github.com/falconsupport/api/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	workers := pflag.IntP("workers", "w", 10, "Number of parallel workers")
	outputFile := pflag.StringP("output", "o", "audit_results.json", "Output file for results")
	deleteOrphans := pflag.Bool("delete", false, "Delete orphaned blobs older than --grace")
	grace := pflag.Duration("grace", 24*time.Hour, "Minimum age before an unreferenced blob counts as orphaned")
	pflag.Parse()

	cfg := config.Load()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	records := store.NewGormStore(db)

	blobs, err := blob.NewDiskStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	ctx := context.Background()
	guides, err := records.AllGuides(ctx)
	if err != nil {
		log.Fatalf("Failed to load guides: %v", err)
	}
	requests, err := records.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		log.Fatalf("Failed to load requests: %v", err)
	}

	total := int64(len(guides) + len(requests))
	fmt.Printf("Auditing %d guides and %d requests with %d workers...\n", len(guides), len(requests), *workers)

	auditor := &Auditor{blobs: blobs}
	itemChan := make(chan func(context.Context) []Issue, *workers*10)
	issueChan := make(chan Issue, 1000)

	var processed int64
	var issueCount int64
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for audit := range itemChan {
				for _, issue := range audit(ctx) {
					issueChan <- issue
					atomic.AddInt64(&issueCount, 1)
				}
				p := atomic.AddInt64(&processed, 1)
				if p%100 == 0 {
					fmt.Printf("Progress: %d/%d (%.1f%%), Issues found: %d\n",
						p, total, float64(p)/float64(total)*100, atomic.LoadInt64(&issueCount))
				}
			}
		}()
	}

	// Collect issues
	var issues []Issue
	done := make(chan bool)
	go func() {
		for issue := range issueChan {
			issues = append(issues, issue)
		}
		done <- true
	}()

	startTime := time.Now()
	for i := range guides {
		g := guides[i]
		itemChan <- func(ctx context.Context) []Issue { return auditor.Guide(ctx, g) }
	}
	for i := range requests {
		r := requests[i]
		itemChan <- func(ctx context.Context) []Issue { return auditor.Request(ctx, r) }
	}

	close(itemChan)
	wg.Wait()
	close(issueChan)
	<-done

	sweeper := scheduler.NewOrphanSweeper(records, records, blobs, scheduler.SweeperConfig{Grace: *grace})
	sweep, err := sweeper.Sweep(ctx, *deleteOrphans)
	if err != nil {
		log.Printf("Orphan scan failed: %v", err)
		sweep = &scheduler.SweepResult{}
	}
	for _, o := range sweep.Orphans {
		issues = append(issues, Issue{
			Kind:    "blob",
			ID:      o.Key,
			Type:    "ORPHAN_BLOB",
			Details: fmt.Sprintf("%d bytes, last modified %s", o.Size, o.ModTime.Format(time.RFC3339)),
		})
	}

	elapsed := time.Since(startTime)
	fmt.Printf("\n=== Audit Complete ===\n")
	fmt.Printf("Records: %d, blobs scanned: %d\n", total, sweep.Scanned)
	fmt.Printf("Issues found: %d\n", len(issues))
	if *deleteOrphans {
		fmt.Printf("Orphans deleted: %d\n", sweep.Deleted)
	}
	fmt.Printf("Time elapsed: %v\n", elapsed)

	issuesByType := GroupByType(issues)
	fmt.Printf("\n=== Issues by Type ===\n")
	for typ, typeIssues := range issuesByType {
		fmt.Printf("%s: %d\n", typ, len(typeIssues))
	}

	output := map[string]interface{}{
		"summary": map[string]interface{}{
			"records":        total,
			"blobsScanned":   sweep.Scanned,
			"issues":         len(issues),
			"orphansDeleted": sweep.Deleted,
			"elapsed":        elapsed.String(),
		},
		"issuesByType": issuesByType,
		"issues":       issues,
	}

	jsonData, _ := json.MarshalIndent(output, "", "  ")
	if err := os.WriteFile(*outputFile, jsonData, 0644); err != nil {
		log.Printf("Failed to write output file: %v", err)
	} else {
		fmt.Printf("\nResults saved to %s\n", *outputFile)
	}
}
