package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ============================================================================
// Snowflake IDs
// ============================================================================
//
//   0 | 41 bits millisecond timestamp | 10 bits worker | 12 bits sequence
//
// IDs are unique per worker and increase with time, which keeps the string
// primary keys below roughly ordered in their indexes.
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

const (
	PrefixCampaign    = "CMP"
	PrefixReservation = "RSV"
	PrefixTransaction = "WTX"
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
	nowMilli  func() int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be within [0, %d], got %d", maxWorkerID, workerID)
	}
	return &Snowflake{
		workerID: workerID,
		nowMilli: func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Init sets the worker id of the package-level generator. Only the first call has an effect.
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = NewSnowflake(workerID)
	})
	return err
}

// NextID uses worker 1 unless Init was called first.
func NextID() int64 {
	_ = Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()

	// never hand out a timestamp older than the last one, even if the wall clock steps back
	if now < s.timestamp {
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = s.nowMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// NewID returns prefix followed by the decimal snowflake id, e.g. RSV123456789012345.
func NewID(prefix string) string {
	return prefix + strconv.FormatInt(NextID(), 10)
}

func GenerateCampaignID() string {
	return NewID(PrefixCampaign)
}

func GenerateReservationID() string {
	return NewID(PrefixReservation)
}

func GenerateTransactionID() string {
	return NewID(PrefixTransaction)
}
