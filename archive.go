package securedraw

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// DrawRecord is the audit entry written for every completed draw. Candidates and
// Winners hold peer IDs in their string form.
type DrawRecord struct {
	DrawID     string   `parquet:"draw_id" json:"draw_id"`
	PoolID     string   `parquet:"pool_id" json:"pool_id"`
	Slot       uint64   `parquet:"slot" json:"slot"`
	Seed       []byte   `parquet:"seed" json:"seed"`
	Candidates []string `parquet:"candidates" json:"candidates"`
	Winners    []string `parquet:"winners" json:"winners"`
}

// Archive keeps draw records as parquet files, one directory per pool.
type Archive struct {
	home string
}

func NewArchive(home string) (*Archive, error) {
	home = filepath.Clean(home)
	if err := os.MkdirAll(home, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create archive directory %s", home)
	}
	return &Archive{home: home}, nil
}

func (a *Archive) Record(r DrawRecord) error {
	basename := fmt.Sprintf("%020d-%s.parquet", r.Slot, r.DrawID)
	out := filepath.Join(a.home, r.PoolID, basename)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", filepath.Dir(out))
	}
	err := parquet.WriteFile(out, []DrawRecord{r},
		parquet.Compression(&zstd.Codec{
			Level:       zstd.DefaultLevel,
			Concurrency: zstd.DefaultConcurrency,
		}),
		parquet.KeyValueMetadata("PoolID", r.PoolID),
		parquet.KeyValueMetadata("DrawID", r.DrawID),
	)
	return errors.Wrapf(err, "failed to write draw record %s", out)
}

// Draws returns the archived draws of a pool, oldest first.
func (a *Archive) Draws(poolID string) ([]DrawRecord, error) {
	files, err := filepath.Glob(filepath.Join(a.home, poolID, "*.parquet"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	slices.Sort(files)
	var records []DrawRecord
	for _, f := range files {
		rows, err := parquet.ReadFile[DrawRecord](f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read draw record %s", f)
		}
		records = append(records, rows...)
	}
	return records, nil
}

// Verify replays the selection of r and checks that it yields the recorded winners.
func Verify(r DrawRecord) error {
	candidates := make([]peer.ID, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		id, err := peer.Decode(c)
		if err != nil {
			return errors.Wrapf(err, "draw %s has invalid candidate %q", r.DrawID, c)
		}
		candidates = append(candidates, id)
	}
	winners, err := Select(candidates, len(r.Winners), r.Seed)
	if err != nil {
		return errors.Wrapf(err, "replaying draw %s", r.DrawID)
	}
	if !slices.Equal(peerStrings(winners), r.Winners) {
		return errors.Wrapf(ErrAuditMismatch, "draw %s", r.DrawID)
	}
	return nil
}

func peerStrings(ids []peer.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
