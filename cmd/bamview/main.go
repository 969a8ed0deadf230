// Copyright ©2017 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bamview prints the alignment records overlapping a genomic
// interval, reading the BAM file's chunks straight out of its index
// instead of scanning the whole file.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mlange-dev/bamra/bam"
	"github.com/mlange-dev/bamra/bgzf"
	"github.com/mlange-dev/bamra/csi"
	"github.com/mlange-dev/bamra/randomaccessmanager"

	"github.com/mlange-dev/bamra/bai"
)

func main() {
	if len(os.Args) != 6 {
		log.Fatal("Expecting bam-file, index-file, ref-name, beg and end arguments")
	}
	bamPath, indexPath, refName := os.Args[1], os.Args[2], os.Args[3]
	beg, err := strconv.Atoi(os.Args[4])
	if err != nil {
		log.Fatalf("bad beg: %v", err)
	}
	end, err := strconv.Atoi(os.Args[5])
	if err != nil {
		log.Fatalf("bad end: %v", err)
	}

	idx, err := readIndex(indexPath)
	if err != nil {
		log.Fatalf("failed to read index: %v", err)
	}

	bf, err := bam.Open(bamPath, idx)
	if err != nil {
		log.Fatalf("failed to open BAM: %v", err)
	}

	refID := -1
	for _, ref := range bf.Header().Refs() {
		if ref.Name() == refName {
			refID = ref.ID()
			break
		}
	}
	if refID < 0 {
		log.Fatalf("reference %q not found in header", refName)
	}

	filter, stats, err := bf.Query(context.Background(), refID, beg, end, bam.QueryOptions{Workers: 2})
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	defer filter.Close()

	w := os.Stdout
	for {
		rec, err := filter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("decoding record: %v", err)
		}
		fmt.Fprintln(w, rec.(fmt.Stringer).String())
	}
	log.Printf("%d records decoded, %d emitted", stats.RecordsDecoded, stats.RecordsEmitted)
}

// readIndex loads a BAI or CSI index, choosing the format by file
// extension: ".csi" reads a CSI index, anything else a BAI index.
func readIndex(path string) (randomaccessmanager.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".csi") {
		bg, err := bgzf.NewReader(f)
		if err != nil {
			return nil, err
		}
		return csi.ReadIndex(bg)
	}
	return bai.ReadIndex(f)
}
