package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/sksmjain/clob-tcp-engine/client"
	"github.com/sksmjain/clob-tcp-engine/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "gateway address")
	totalOrders := flag.Int("orders", 100000, "number of orders to submit")
	clientID := flag.Uint64("client-id", 1, "client id stamped on every order")
	priceLevels := flag.Int64("price-levels", 200, "unique price levels around the mid")
	tick := flag.Int64("tick", 1, "tick size for limit prices")
	basePrice := flag.Int64("base-price", 10000, "mid price used for randomization")
	iocRatio := flag.Int("ioc-ratio", 5, "1 in N orders is IOC instead of GTC")
	cancelEvery := flag.Int("cancel-every", 0, "cancel a random earlier order every N submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	cl, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer cl.Close()

	// In-flight send times keyed by cl_ord_id; the reader resolves them
	// against incoming ACKs to measure command round trips.
	var mu sync.Mutex
	inflight := make(map[uint64]time.Time, 1024)

	// Track 1µs .. 10s at 3 significant digits, same window the original
	// latency reporter used.
	hist := hdrhistogram.New(1, 10_000_000, 3)
	acked := 0
	done := make(chan struct{})

	go func() {
		defer close(done)
		for acked < *totalOrders {
			msg, err := cl.ReadEvent()
			if err != nil {
				fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
				return
			}
			switch m := msg.(type) {
			case wire.Ack:
				mu.Lock()
				t0, ok := inflight[m.ClOrdID]
				delete(inflight, m.ClOrdID)
				mu.Unlock()
				if ok {
					_ = hist.RecordValue(time.Since(t0).Microseconds())
					acked++
				}
			case wire.Reject:
				mu.Lock()
				_, ok := inflight[m.ClOrdID]
				delete(inflight, m.ClOrdID)
				mu.Unlock()
				if ok {
					acked++
				}
			}
			// Trades and book deltas from the public stream are not timed.
		}
	}()

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		ord := nextRandomOrder(rng, uint64(i+1), *clientID, *basePrice, *priceLevels, *tick, *iocRatio)
		mu.Lock()
		inflight[ord.ClOrdID] = time.Now()
		mu.Unlock()
		if err := cl.NewOrder(ord); err != nil {
			fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
			os.Exit(1)
		}
		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := uint64(rng.Intn(i) + 1)
			_ = cl.Cancel(*clientID, target)
		}
	}
	<-done
	elapsed := time.Since(start)

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	fmt.Printf("submitted %d orders in %s (%.0f orders/s)\n",
		*totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec)
	fmt.Printf("rtt p50=%dµs p95=%dµs p99=%dµs min=%dµs max=%dµs\n",
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(95), hist.ValueAtQuantile(99),
		hist.Min(), hist.Max())
}

func nextRandomOrder(rng *rand.Rand, clOrdID, clientID uint64, mid, width, tick int64, iocRatio int) wire.NewOrder {
	side := wire.SideBuy
	if rng.Intn(2) == 1 {
		side = wire.SideSell
	}

	var price int64
	if side == wire.SideBuy {
		price = mid + rng.Int63n(width)
	} else {
		offset := rng.Int63n(width)
		if mid > offset {
			price = mid - offset
		} else {
			price = tick
		}
	}

	tif := wire.TifGTC
	if iocRatio > 0 && rng.Intn(iocRatio) == 0 {
		tif = wire.TifIOC
	}

	return wire.NewOrder{
		ClientID: clientID,
		ClOrdID:  clOrdID,
		Side:     side,
		Price:    price,
		Qty:      rng.Int63n(5) + 1,
		Tif:      tif,
	}
}
