package payments

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// ReferenceGenerator builds ORDER_<order>_<unix ms>_<seq><rand> references. The counter
// keeps attempts inside one process unique even within the same millisecond; the random
// suffix separates processes.
type ReferenceGenerator struct {
	now  func() time.Time
	rand func(n int) string
	seq  atomic.Uint64
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now, rand: randHex}
}

func (g *ReferenceGenerator) Next(orderID string) string {
	n := g.seq.Add(1) % 1000
	return fmt.Sprintf("ORDER_%s_%d_%03d%s", orderID, g.now().UnixMilli(), n, g.rand(3))
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "000000"
	}
	return hex.EncodeToString(b)
}
