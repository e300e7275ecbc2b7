package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nicktill/skilltrend/pkg/progression"
	"github.com/nicktill/skilltrend/pkg/storage"
)

// Record family prefixes. Keys within a family sort chronologically per
// player, which makes upserts natural overwrites and trend reads ordered
// prefix scans.
//
//	snapshot:  's' + playerHash(8) + tsNano(8)          -> JSON Snapshot
//	summary:   tier prefix + playerHash(8) + periodKey  -> JSON PeriodSummary
//	level-up:  'e' + tsNano(8) + playerHash(8)          -> JSON LevelUpEvent
const (
	prefixSnapshot = 's'
	prefixHourly   = 'h'
	prefixDaily    = 'd'
	prefixWeekly   = 'w'
	prefixEvent    = 'e'
)

// Store implements storage.Store using BadgerDB (LSM tree).
// Badger serializes concurrent writers internally, which satisfies the
// single shared handle requirement for the snapshot producer and the
// compaction pipeline running on independent timers.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = conservative default)
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Conservative memory limits: the daemon shares a host with the game
	// integration it serves. BadgerDB defaults would claim hundreds of MB.
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	} else {
		// 16 MB memtable is the floor for decent flush behavior
		memTableSize = 16 * 1024 * 1024
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// InsertSnapshot appends a raw snapshot row
func (s *Store) InsertSnapshot(ctx context.Context, snap progression.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	key := snapshotKey(snap.PlayerID, snap.Timestamp)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// InsertPeriodSummary upserts a summary row; the key embeds (periodKey,
// player), so a second write for the same pair overwrites the first
func (s *Store) InsertPeriodSummary(ctx context.Context, tier progression.Tier, sum progression.PeriodSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix, ok := summaryPrefix(tier)
	if !ok {
		return storage.ErrUnknownTier
	}
	value, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	key := summaryKey(prefix, sum.PlayerID, sum.PeriodKey)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// CompactionCandidates returns per (bucket, player) aggregate inputs over
// source rows strictly older than the cutoff
func (s *Store) CompactionCandidates(ctx context.Context, source progression.Tier, olderThan time.Time) ([]storage.CandidateGroup, error) {
	target, ok := progression.NextTier(source)
	if !ok {
		return nil, storage.ErrUnknownTier
	}

	var rows []storage.SourceRow
	err := s.scanFamily(ctx, source, func(key, value []byte) error {
		row, include, err := sourceRow(source, key, value, olderThan)
		if err != nil {
			// Undecodable row: skip it rather than stall the whole stage.
			return nil
		}
		if include {
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return storage.GroupCandidates(target, rows)
}

// DeleteSourceRowsOlderThan removes a tier's rows strictly older than the cutoff
func (s *Store) DeleteSourceRowsOlderThan(ctx context.Context, tier progression.Tier, olderThan time.Time) (int, error) {
	var keysToDelete [][]byte
	err := s.scanFamily(ctx, tier, func(key, value []byte) error {
		ts, err := rowTime(tier, key)
		if err != nil {
			return nil
		}
		if ts.Before(olderThan) {
			keysToDelete = append(keysToDelete, append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.deleteKeys(keysToDelete); err != nil {
		return 0, err
	}
	return len(keysToDelete), nil
}

// InsertLevelUpEvent appends one level-up event
func (s *Store) InsertLevelUpEvent(ctx context.Context, ev progression.LevelUpEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	key := eventKey(ev.PlayerID, ev.Timestamp)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// DeleteLevelUpEventsOlderThan prunes events strictly older than the cutoff.
// Event keys sort by timestamp, so the scan stops at the first survivor.
func (s *Store) DeleteLevelUpEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var keysToDelete [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{prefixEvent}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ts := time.Unix(0, int64(binary.BigEndian.Uint64(key[1:9])))
			if !ts.Before(cutoff) {
				break
			}
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.deleteKeys(keysToDelete); err != nil {
		return 0, err
	}
	return len(keysToDelete), nil
}

// QueryTrend returns one player's trend points from one tier, oldest first.
// Keys under a (family, player) prefix sort chronologically, so the scan
// order is the result order.
func (s *Store) QueryTrend(ctx context.Context, tier progression.Tier, playerID string, series progression.Series, since time.Time) ([]progression.TrendPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := make([]byte, 9)
	if tier == progression.TierRaw {
		prefix[0] = prefixSnapshot
	} else {
		p, ok := summaryPrefix(tier)
		if !ok {
			return nil, storage.ErrUnknownTier
		}
		prefix[0] = p
	}
	binary.BigEndian.PutUint64(prefix[1:9], xxhash.Sum64String(playerID))

	var points []progression.TrendPoint
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ts, err := rowTime(tier, it.Item().Key())
			if err != nil {
				continue
			}
			if !since.IsZero() && ts.Before(since) {
				continue
			}

			err = it.Item().Value(func(val []byte) error {
				level, err := seriesLevel(tier, val, series)
				if err != nil {
					return err
				}
				points = append(points, progression.TrendPoint{Timestamp: ts, Level: level})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{}
	players := make(map[uint64]bool)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			key := it.Item().Key()
			switch key[0] {
			case prefixSnapshot:
				stats.Snapshots++
				players[binary.BigEndian.Uint64(key[1:9])] = true
				ts := time.Unix(0, int64(binary.BigEndian.Uint64(key[9:17])))
				if stats.OldestSnapshot.IsZero() || ts.Before(stats.OldestSnapshot) {
					stats.OldestSnapshot = ts
				}
				if ts.After(stats.NewestSnapshot) {
					stats.NewestSnapshot = ts
				}
			case prefixHourly:
				stats.HourlySummaries++
				players[binary.BigEndian.Uint64(key[1:9])] = true
			case prefixDaily:
				stats.DailySummaries++
				players[binary.BigEndian.Uint64(key[1:9])] = true
			case prefixWeekly:
				stats.WeeklySummaries++
				players[binary.BigEndian.Uint64(key[1:9])] = true
			case prefixEvent:
				stats.LevelUpEvents++
				players[binary.BigEndian.Uint64(key[9:17])] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.Players = uint64(len(players))
	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// Close shuts down BadgerDB cleanly
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection to reclaim disk space
// from deleted rows. discardRatio: run GC if this fraction of a value log
// file can be discarded (0.5 = 50%).
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// scanFamily iterates every key in a record family, checking the context
// every 1000 iterations so a long scan cannot outlive its caller's deadline.
func (s *Store) scanFamily(ctx context.Context, tier progression.Tier, fn func(key, value []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var prefix byte
	if tier == progression.TierRaw {
		prefix = prefixSnapshot
	} else {
		p, ok := summaryPrefix(tier)
		if !ok {
			return storage.ErrUnknownTier
		}
		prefix = p
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		opts.Prefix = []byte{prefix}

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				return fn(item.Key(), val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteKeys removes keys in batches. Badger caps transaction size, so large
// retention deletes are chunked.
func (s *Store) deleteKeys(keys [][]byte) error {
	const batchSize = 10000
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys[start:end] {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// sourceRow decodes one compaction-source row and reports whether it is
// strictly older than the cutoff.
func sourceRow(source progression.Tier, key, value []byte, olderThan time.Time) (storage.SourceRow, bool, error) {
	if source == progression.TierRaw {
		var snap progression.Snapshot
		if err := json.Unmarshal(value, &snap); err != nil {
			return storage.SourceRow{}, false, err
		}
		if !snap.Timestamp.Before(olderThan) {
			return storage.SourceRow{}, false, nil
		}
		return storage.SourceRow{
			Time:        snap.Timestamp,
			PlayerID:    snap.PlayerID,
			PlayerName:  snap.PlayerName,
			MinPower:    snap.Power,
			MaxPower:    snap.Power,
			FirstSkills: snap.Skills,
			LastSkills:  snap.Skills,
		}, true, nil
	}

	var sum progression.PeriodSummary
	if err := json.Unmarshal(value, &sum); err != nil {
		return storage.SourceRow{}, false, err
	}
	bucketTime, err := progression.BucketTime(source, sum.PeriodKey)
	if err != nil {
		return storage.SourceRow{}, false, err
	}
	if !bucketTime.Before(olderThan) {
		return storage.SourceRow{}, false, nil
	}
	starts := make(map[progression.Skill]int, len(sum.Skills))
	ends := make(map[progression.Skill]int, len(sum.Skills))
	for skill, delta := range sum.Skills {
		starts[skill] = delta.Start
		ends[skill] = delta.End
	}
	return storage.SourceRow{
		Time:        bucketTime,
		PlayerID:    sum.PlayerID,
		PlayerName:  sum.PlayerName,
		MinPower:    sum.StartPower,
		MaxPower:    sum.EndPower,
		FirstSkills: starts,
		LastSkills:  ends,
	}, true, nil
}

// seriesLevel extracts the requested series value from an encoded row.
func seriesLevel(tier progression.Tier, value []byte, series progression.Series) (int, error) {
	if tier == progression.TierRaw {
		var snap progression.Snapshot
		if err := json.Unmarshal(value, &snap); err != nil {
			return 0, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		return snap.Level(series), nil
	}
	var sum progression.PeriodSummary
	if err := json.Unmarshal(value, &sum); err != nil {
		return 0, fmt.Errorf("failed to decode summary: %w", err)
	}
	return sum.EndLevel(series), nil
}

// rowTime extracts a row's reference time from its key: the capture time for
// snapshots, the bucket start time for summaries.
func rowTime(tier progression.Tier, key []byte) (time.Time, error) {
	if tier == progression.TierRaw {
		if len(key) < 17 {
			return time.Time{}, fmt.Errorf("short snapshot key (%d bytes)", len(key))
		}
		return time.Unix(0, int64(binary.BigEndian.Uint64(key[9:17]))), nil
	}
	if len(key) < 10 {
		return time.Time{}, fmt.Errorf("short summary key (%d bytes)", len(key))
	}
	return progression.BucketTime(tier, string(key[9:]))
}

func summaryPrefix(tier progression.Tier) (byte, bool) {
	switch tier {
	case progression.TierHourly:
		return prefixHourly, true
	case progression.TierDaily:
		return prefixDaily, true
	case progression.TierWeekly:
		return prefixWeekly, true
	default:
		return 0, false
	}
}

func snapshotKey(playerID string, ts time.Time) []byte {
	key := make([]byte, 17)
	key[0] = prefixSnapshot
	binary.BigEndian.PutUint64(key[1:9], xxhash.Sum64String(playerID))
	binary.BigEndian.PutUint64(key[9:17], uint64(ts.UnixNano()))
	return key
}

func summaryKey(prefix byte, playerID, periodKey string) []byte {
	var buf bytes.Buffer
	buf.Grow(9 + len(periodKey))
	buf.WriteByte(prefix)
	var hash [8]byte
	binary.BigEndian.PutUint64(hash[:], xxhash.Sum64String(playerID))
	buf.Write(hash[:])
	buf.WriteString(periodKey)
	return buf.Bytes()
}

func eventKey(playerID string, ts time.Time) []byte {
	key := make([]byte, 17)
	key[0] = prefixEvent
	binary.BigEndian.PutUint64(key[1:9], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint64(key[9:17], xxhash.Sum64String(playerID))
	return key
}
