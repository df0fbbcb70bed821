package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

var ErrMalformedManifest = errors.New("malformed manifest")

var csvHeader = []string{"File Name", "File Path", "File Size", "Last Modified", "Hash"}

// ReadCSV parses a bulk manifest. The header row is required; rows are
// validated so a truncated or hand-edited manifest fails loudly instead of
// planning bogus transfers.
func ReadCSV(r io.Reader) ([]BulkFileRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty", ErrMalformedManifest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedManifest, err)
	}
	for i, col := range csvHeader {
		if strings.TrimPrefix(header[i], "\ufeff") != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedManifest, i+1, header[i], col)
		}
	}

	var files []BulkFileRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedManifest, err)
		}

		rec, err := parseRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedManifest, line, err)
		}
		files = append(files, rec)
	}
	return files, nil
}

func parseRow(row []string) (BulkFileRecord, error) {
	rel := path.Clean(strings.TrimLeft(row[1], "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return BulkFileRecord{}, fmt.Errorf("bad path %q", row[1])
	}

	size, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil || size < 0 {
		return BulkFileRecord{}, fmt.Errorf("bad size %q", row[2])
	}

	modified, err := time.Parse(time.RFC3339, row[3])
	if err != nil {
		return BulkFileRecord{}, fmt.Errorf("bad timestamp %q", row[3])
	}

	var hash digest.Digest
	if row[4] != "" {
		hash, err = digest.Parse(row[4])
		if err != nil {
			return BulkFileRecord{}, fmt.Errorf("bad hash %q: %w", row[4], err)
		}
	}

	name := row[0]
	if name == "" {
		name = path.Base(rel)
	}

	return BulkFileRecord{
		Name:         name,
		Path:         rel,
		Size:         size,
		LastModified: modified.UTC(),
		Hash:         hash,
	}, nil
}

func WriteCSV(w io.Writer, files []BulkFileRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range files {
		row := []string{
			f.Name,
			f.Path,
			strconv.FormatInt(f.Size, 10),
			f.LastModified.UTC().Format(time.RFC3339),
			f.Hash.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
