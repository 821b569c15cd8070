// Command store_verify checks every blob in an object store directory
// against its own content hash. A blob whose sharded path no longer matches
// the SHA-1 of its bytes was corrupted or misplaced and is reported; with
// -remove the tool deletes such blobs so a later reconcile can re-ingest.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/arkival/arkive-api/pkg/storage"
)

type verification struct {
	Hash     string
	Actual   string
	Size     int64
	Err      error
	Duration time.Duration
}

func (v verification) ok() bool {
	return v.Err == nil && v.Hash == v.Actual
}

func main() {
	var (
		storeDir string
		remove   bool
	)

	flag.StringVar(&storeDir, "store", "data/objects", "Object store base directory")
	flag.BoolVar(&remove, "remove", false, "Delete blobs that fail verification")
	flag.Parse()

	store, err := storage.NewObjectStore(storeDir)
	if err != nil {
		log.Fatalf("failed to open object store: %v", err)
	}

	hashes, err := store.ListHashes()
	if err != nil {
		log.Fatalf("failed to list blobs: %v", err)
	}

	var results []verification
	bad := 0
	for _, hash := range hashes {
		res := verifyBlob(store, hash)
		if !res.ok() {
			bad++
			if remove {
				if err := store.Delete(hash); err != nil {
					log.Printf("failed to remove %s: %v", hash, err)
				}
			}
		}
		results = append(results, res)
	}

	printReport(results, remove)

	fmt.Printf("Blobs checked: %d, failed: %d\n", len(results), bad)
	if bad > 0 {
		os.Exit(1)
	}
}

func verifyBlob(store *storage.ObjectStore, hash string) verification {
	res := verification{Hash: hash}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	info, err := os.Stat(store.Path(hash))
	if err != nil {
		res.Err = fmt.Errorf("stat blob: %w", err)
		return res
	}
	res.Size = info.Size()

	actual, err := storage.HashFile(store.Path(hash))
	if err != nil {
		res.Err = fmt.Errorf("hash blob: %w", err)
		return res
	}
	res.Actual = actual
	return res
}

func printReport(results []verification, removed bool) {
	fmt.Println("Object Store Verification")
	fmt.Println("=========================")
	for _, res := range results {
		if res.ok() {
			continue
		}
		status := "MISMATCH"
		if res.Err != nil {
			status = "ERROR"
		} else if removed {
			status = "REMOVED"
		}
		fmt.Printf("[%s] %s\n", status, res.Hash)
		if res.Err != nil {
			fmt.Printf("  Error: %v (%s)\n", res.Err, res.Duration)
		} else {
			fmt.Printf("  Content hash: %s | Size: %d bytes (%s)\n", res.Actual, res.Size, res.Duration)
		}
	}
}
