package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"

	"github.com/myuser/widetable"
	"github.com/myuser/widetable/internal/metrics"
)

var cli struct {
	Concurrency int           `default:"10" help:"Number of concurrent workers."`
	PoolSize    int           `default:"4" help:"Connection pool slots shared by the workers."`
	Duration    time.Duration `default:"10s" help:"Test duration."`
	Keys        int           `default:"10000" help:"Size of the row key space."`
	MaxVersions int           `default:"3" help:"Versions retained per column."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("benchmark"),
		kong.Description("Mixed put/get/scan load against an in-process table."),
	)

	fmt.Printf("Starting Benchmark: %d workers, %d pool slots, %v duration\n", cli.Concurrency, cli.PoolSize, cli.Duration)

	conn := widetable.NewConnection(widetable.Config{})
	err := conn.CreateTable("t", map[string]widetable.FamilyOverrides{
		"d": {MaxVersions: &cli.MaxVersions},
	})
	if err != nil {
		fmt.Printf("CreateTable failed: %v\n", err)
		return
	}
	pool, err := widetable.NewPool(cli.PoolSize, conn)
	if err != nil {
		fmt.Printf("NewPool failed: %v\n", err)
		return
	}

	var ops int64
	var errs int64
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), cli.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cli.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				err := pool.Connection(ctx, func(c *widetable.Connection) error {
					return workload(c.Table("t"), cli.Keys)
				})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					if n := atomic.AddInt64(&errs, 1); n <= 5 {
						fmt.Printf("Error: %v\n", err)
					}
					continue
				}
				atomic.AddInt64(&ops, 1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("Benchmark Finished.")
	fmt.Printf("Total Ops: %d\n", ops)
	fmt.Printf("Errors: %d\n", errs)
	fmt.Printf("Duration: %v\n", elapsed)
	fmt.Printf("RPS: %.2f\n", float64(ops)/elapsed.Seconds())
	for name, v := range metrics.Snapshot() {
		fmt.Printf("  %s: %d\n", name, v)
	}
}

// workload runs one operation: 50% put, 40% get, 10% short scan.
func workload(tbl *widetable.Table, keys int) error {
	key := []byte(fmt.Sprintf("user%d", rand.Intn(keys)))

	switch p := rand.Float32(); {
	case p < 0.5:
		val := []byte(fmt.Sprintf("val%d", rand.Intn(1000)))
		return tbl.Put(key, map[string][]byte{"d:v": val})
	case p < 0.9:
		_, err := tbl.Row(key)
		return err
	default:
		s, err := tbl.Scan(widetable.WithRowStart(key), widetable.WithLimit(10))
		if err != nil {
			return err
		}
		s.Collect()
		return nil
	}
}
