// Command cachectl is a small administrative tool for exercising a Cache
// against an in-memory storage image, for manual poking and demoing the
// cache's externally visible behavior without a real peer session.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/cache"
	"github.com/rkennedy/peercache/cachetest"
	"github.com/rkennedy/peercache/stats"
)

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "pieces", Value: 4, Usage: "number of pieces in the demo image"},
		&cli.IntFlag{Name: "piece-size", Value: 2 * peercache.BlockSize, Usage: "bytes per piece"},
		&cli.IntFlag{Name: "max-size", Value: 4, Usage: "cache admission ceiling, in blocks"},
	}
}

func newSessionFromContext(c *cli.Context) *session {
	return newSession(c.Int("pieces"), uint32(c.Int("piece-size")), c.Int("max-size"))
}

func printStats(label string, snap cache.Stats) {
	fmt.Printf(
		"%s: cache_size=%d read_cache_size=%d write_cache_size=%d blocks_read=%d blocks_read_hit=%d\n",
		label, snap.CacheSize, snap.ReadCacheSize, snap.WriteCacheSize, snap.BlocksRead, snap.BlocksReadHit,
	)
}

func main() {
	app := cli.App{
		Usage: "Exercise a peercache block cache against an in-memory image",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Build a fresh session and print its counters",
				Action: runStats,
				Flags:  sessionFlags(),
			},
			{
				Name:   "put",
				Usage:  "Write a dirty block and print the result",
				Action: runPut,
				Flags: append(sessionFlags(),
					&cli.IntFlag{Name: "piece", Value: 0, Usage: "piece index to write"},
					&cli.IntFlag{Name: "block", Value: 0, Usage: "block index within the piece"},
				),
			},
			{
				Name:   "get",
				Usage:  "Read a block, filling it from storage on a cache miss",
				Action: runGet,
				Flags: append(sessionFlags(),
					&cli.IntFlag{Name: "piece", Value: 0, Usage: "piece index to read"},
					&cli.IntFlag{Name: "block", Value: 0, Usage: "block index within the piece"},
				),
			},
			{
				Name:   "evict",
				Usage:  "Load clean blocks of piece 0 (at most max-size of them), then evict some and report what happened",
				Action: runEvict,
				Flags: append(sessionFlags(),
					&cli.IntFlag{Name: "num", Value: 1, Usage: "number of blocks to evict"},
				),
			},
			{
				Name:   "demo",
				Usage:  "Run a scripted write -> flush -> read-hit -> read-and-hash session and print the resulting stats",
				Action: runDemo,
				Flags:  sessionFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func runStats(c *cli.Context) error {
	s := newSessionFromContext(c)
	printStats("stats", s.cache.GetStats())
	return nil
}

func runPut(c *cli.Context) error {
	s := newSessionFromContext(c)
	piece := peercache.PieceIndex(c.Int("piece"))
	block := uint32(c.Int("block"))

	job := cachetest.NewJob(peercache.ActionWrite, s.store, piece, block*peercache.BlockSize, peercache.BlockSize)
	job.Buffer = randomBlock()
	result := s.cache.AddDirtyBlock(job)
	fmt.Printf("put piece=%d block=%d -> %s\n", piece, block, result)
	printStats("put", s.cache.GetStats())
	return nil
}

func runGet(c *cli.Context) error {
	s := newSessionFromContext(c)
	piece := peercache.PieceIndex(c.Int("piece"))
	block := peercache.BlockIndex(c.Int("block"))

	job := cachetest.NewJob(peercache.ActionRead, s.store, piece, uint32(block)*peercache.BlockSize, peercache.BlockSize)
	if n := s.cache.TryRead(job); n != int(peercache.ResultNotCached) {
		fmt.Printf("get piece=%d block=%d -> hit, result=%d\n", piece, block, n)
		printStats("get", s.cache.GetStats())
		return nil
	}

	n := s.cache.AllocatePending(s.store, block, block+1, cache.PriorityRegularRead, job)
	if n != 1 {
		return fmt.Errorf("allocate pending for piece=%d block=%d: %s", piece, block, peercache.Result(n))
	}

	e := s.cache.Find(s.store.ID(), piece)
	if err := s.fillPendingFromStorage(e, piece, block, block+1); err != nil {
		return fmt.Errorf("read from storage: %w", err)
	}

	exec := newChannelExecutor(1)
	s.cache.MarkAsDone(e, block, block+1, exec, nil)
	exec.close()
	for p := range exec.ch {
		fmt.Printf("get piece=%d block=%d -> miss, filled, result=%d\n", piece, block, p.result)
	}
	printStats("get", s.cache.GetStats())
	return nil
}

func runEvict(c *cli.Context) error {
	s := newSessionFromContext(c)
	piece := peercache.PieceIndex(0)
	maxSize := c.Int("max-size")

	for b := peercache.BlockIndex(0); int(b) < maxSize; b++ {
		job := cachetest.NewJob(peercache.ActionRead, s.store, piece, uint32(b)*peercache.BlockSize, peercache.BlockSize)
		if n := s.cache.AllocatePending(s.store, b, b+1, cache.PriorityRegularRead, job); n != 1 {
			break
		}
		e := s.cache.Find(s.store.ID(), piece)
		if err := s.fillPendingFromStorage(e, piece, b, b+1); err != nil {
			return fmt.Errorf("read from storage: %w", err)
		}
		s.cache.MarkAsDone(e, b, b+1, nil, nil)
	}
	printStats("before evict", s.cache.GetStats())

	num := c.Int("num")
	remaining := s.cache.Evict(num, cache.PriorityRegularRead, nil)
	fmt.Printf("evict requested=%d unsatisfied=%d pool_in_use=%d\n", num, remaining, s.pool.InUse())
	printStats("after evict", s.cache.GetStats())
	return nil
}

func runDemo(c *cli.Context) error {
	s := newSessionFromContext(c)
	pieces := c.Int("pieces")
	pieceSize := uint32(c.Int("piece-size"))
	blocksInPiece := int(pieceSize) / peercache.BlockSize

	exec := newChannelExecutor(pieces * blocksInPiece)

	// Write every block of every piece as dirty.
	for p := 0; p < pieces; p++ {
		for b := 0; b < blocksInPiece; b++ {
			job := cachetest.NewJob(peercache.ActionWrite, s.store, peercache.PieceIndex(p), uint32(b*peercache.BlockSize), peercache.BlockSize)
			job.Buffer = randomBlock()
			result := s.cache.AddDirtyBlock(job)
			fmt.Printf("write piece=%d block=%d -> %s\n", p, b, result)
		}
	}

	// Flush piece 0 back to storage: pin its dirty range, perform the write,
	// then report completion.
	e := s.cache.Find(s.store.ID(), 0)
	if e != nil {
		begin, end := peercache.BlockIndex(0), peercache.BlockIndex(blocksInPiece)
		s.cache.BeginFlush(e, begin, end)
		for b := int(begin); b < int(end); b++ {
			offset := int64(b) * int64(peercache.BlockSize)
			if err := s.store.WriteAt(offset, e.Blocks[b].Buffer); err != nil {
				return fmt.Errorf("flush piece=0 block=%d: %w", b, err)
			}
		}
		s.cache.MarkAsDone(e, begin, end, exec, nil)
	}

	// Read piece 0 back; it should now be a clean-block hit.
	readJob := cachetest.NewJob(peercache.ActionRead, s.store, 0, 0, peercache.BlockSize)
	hit := s.cache.TryRead(readJob)
	fmt.Printf("read piece=0 block=0 -> %d\n", hit)

	// read-and-hash piece 0, verifying the piece's whole contents.
	hashJob := cachetest.NewJob(peercache.ActionReadAndHash, s.store, 0, 0, peercache.BlockSize)
	if e != nil && e.AllResident() {
		e.Jobs.Append(hashJob)
		s.cache.MarkAsDone(e, 0, 0, exec, nil)
	}

	exec.close()
	for p := range exec.ch {
		fmt.Printf("completion job=%s piece=%d -> result=%d\n", p.job.Action, p.job.Piece, p.result)
	}

	var counters stats.Counters
	snap := s.cache.GetStats()
	counters.SetSizes(snap.CacheSize, snap.ReadCacheSize, snap.WriteCacheSize)
	report := counters.Snapshot()
	fmt.Printf(
		"cache_size=%d read_cache_size=%d write_cache_size=%d blocks_read=%d blocks_read_hit=%d\n",
		report.CacheSize, report.ReadCacheSize, report.WriteCacheSize, snap.BlocksRead, snap.BlocksReadHit,
	)
	return nil
}
