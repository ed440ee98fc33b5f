package message

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/security"
)

func TestIDGeneratorNeverZero(t *testing.T) {
	g := NewIDGenerator()
	for i := 0; i < 100; i++ {
		if g.Next() == 0 {
			t.Fatal("generator produced zero id")
		}
	}
}

func TestIDGeneratorConcurrentUnique(t *testing.T) {
	g := NewIDGenerator()
	const workers = 8
	const perWorker = 1000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, g.Next())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*perWorker)
}

func TestMarketDataCloneDeep(t *testing.T) {
	from := time.Now().Add(-time.Hour)
	to := time.Now()
	orig := &MarketDataMessage{
		Header:        Header{Time: time.Now()},
		TransactionID: 7,
		Subscribe:     true,
		Security:      security.ID{Symbol: "AAA", Board: "SIM"},
		DataType:      security.DataTypeLevel1,
		From:          &from,
		To:            &to,
	}
	clone := orig.Clone().(*MarketDataMessage)

	*clone.From = clone.From.Add(time.Minute)
	assert.True(t, orig.From.Equal(from), "clone shares From pointer")
	assert.NotSame(t, orig.To, clone.To)
}

func TestLevel1CloneDeep(t *testing.T) {
	orig := &Level1ChangeMessage{
		Header:          Header{Time: time.Now()},
		SubscriptionIDs: []int64{1, 2},
		Security:        security.ID{Symbol: "AAA", Board: "SIM"},
		Changes: map[Level1Field]decimal.Decimal{
			Level1FieldLastTradePrice: decimal.NewFromInt(100),
		},
	}
	clone := orig.Clone().(*Level1ChangeMessage)

	clone.SubscriptionIDs[0] = 99
	clone.Changes[Level1FieldLastTradePrice] = decimal.NewFromInt(1)

	assert.Equal(t, int64(1), orig.SubscriptionIDs[0])
	assert.True(t, orig.Changes[Level1FieldLastTradePrice].Equal(decimal.NewFromInt(100)))
}

func TestExecutionCloneDeep(t *testing.T) {
	pnl := decimal.NewFromInt(5)
	orig := &ExecutionMessage{
		Header:          Header{Time: time.Now()},
		SubscriptionIDs: []int64{3},
		TransactionID:   11,
		PnL:             &pnl,
	}
	clone := orig.Clone().(*ExecutionMessage)

	*clone.PnL = decimal.NewFromInt(50)
	clone.SubscriptionIDs[0] = 4

	assert.True(t, orig.PnL.Equal(decimal.NewFromInt(5)), "clone shares PnL pointer")
	assert.Equal(t, int64(3), orig.SubscriptionIDs[0])
}

func TestSubscribableRoundTrip(t *testing.T) {
	var m Subscribable = &QuoteChangeMessage{}
	m.SetSubscriptions([]int64{5, 6})
	assert.Equal(t, []int64{5, 6}, m.Subscriptions())
}
