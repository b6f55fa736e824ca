// Command hazstress soaks the hazard-pointer substrate: readers protect a
// hot snapshot pointer while a writer swaps payloads out and retires the old
// ones through an SPSC ring to a dedicated reclaimer. Reclaimed payloads are
// poisoned and recycled through a pool, so any use-after-free shows up as a
// corrupt read instead of silent memory reuse.
package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"conc/hazard"
	"conc/lfstack"
	"conc/memory"
)

func main() {
	app := &cli.App{
		Name:  "hazstress",
		Usage: "stress the hazard-pointer reclamation substrate",
		Commands: []*cli.Command{
			runCommand(),
			stackCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "hazstress",
		Level: hclog.LevelFromString(c.String("log-level")),
	})
}

// ---------------- snapshot churn ---------------- //

// payload is the protected object. The checksum lets readers detect reads of
// recycled memory; poison marks payloads the domain has reclaimed.
type payload struct {
	seq    uint64
	words  [6]uint64
	sum    uint64
	poison atomic.Uint32
}

func (p *payload) stamp(seq uint64) {
	p.poison.Store(0)
	p.seq = seq
	s := seq
	for i := range p.words {
		s = s*6364136223846793005 + 1442695040888963407
		p.words[i] = s
	}
	p.sum = p.checksum()
}

func (p *payload) checksum() uint64 {
	s := p.seq
	for _, w := range p.words {
		s ^= w
	}
	return s
}

func (p *payload) ok() bool {
	return p.poison.Load() == 0 && p.sum == p.checksum()
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "churn a shared snapshot pointer under protecting readers",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "readers", Value: 4, Usage: "protecting reader goroutines"},
			&cli.IntFlag{Name: "slots", Usage: "hazard slots (defaults to --readers)"},
			&cli.Uint64Flag{Name: "ring", Value: 1 << 16, Usage: "retire hand-off ring size (power of two)"},
			&cli.DurationFlag{Name: "duration", Value: 5 * time.Second},
			&cli.StringFlag{Name: "metrics", Usage: "listen address for /metrics (off when empty)"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: runStress,
	}
}

func runStress(c *cli.Context) error {
	log := newLogger(c)

	readers := c.Int("readers")
	slots := c.Int("slots")
	if slots == 0 {
		slots = readers
	}

	// ---------------- Memory ----------------

	pool := memory.NewPool(func() *payload { return new(payload) })
	ring := memory.NewRing[payload](c.Uint64("ring"))

	// ---------------- Domain ----------------

	dom := hazard.New[payload](slots,
		hazard.WithLogger[payload](log.Named("domain")),
		hazard.WithFree(func(p *payload) {
			p.poison.Store(1)
			pool.Put(p)
		}),
	)

	reg := hazard.NewRegistry(log.Named("registry"))
	if err := hazard.Install(reg, dom); err != nil {
		return err
	}
	defer reg.Shutdown()

	// ---------------- Metrics ----------------

	if addr := c.String("metrics"); addr != "" {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(hazard.NewCollector("payload", dom))
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics listener failed", "error", err)
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", "addr", addr)
	}

	// ---------------- Workers ----------------

	var (
		current    atomic.Pointer[payload]
		stop       atomic.Bool
		writerDone atomic.Bool
		swaps      atomic.Uint64
		reads      atomic.Uint64
		corrupt    atomic.Uint64
		wg         sync.WaitGroup
	)

	seed := pool.Get()
	seed.stamp(0)
	current.Store(seed)

	// Reclaimer: drains the ring into its own retire buffer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt := dom.NewRetirer()
		defer rt.Close()
		for {
			p := ring.Dequeue()
			if p == nil {
				if writerDone.Load() && ring.IsEmpty() {
					return
				}
				runtime.Gosched()
				continue
			}
			rt.Retire(p)
		}
	}()

	// Writer: swaps in fresh payloads, hands the old ones to the reclaimer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer writerDone.Store(true)
		for seq := uint64(1); !stop.Load(); seq++ {
			p := pool.Get()
			p.stamp(seq)
			old := current.Swap(p)
			for !ring.Enqueue(old) {
				runtime.Gosched() // reclaimer is behind; wait for room
			}
			swaps.Add(1)
		}
	}()

	// Readers: protect, verify, release.
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hp := dom.Acquire()
			defer hp.Release()
			var n, bad uint64
			for !stop.Load() {
				g := hazard.NewGuard(hp, &current)
				if g.OK() && !g.Get().ok() {
					bad++
				}
				g.Release()
				n++
			}
			reads.Add(n)
			corrupt.Add(bad)
		}()
	}

	log.Info("stress started", "readers", readers, "slots", slots, "duration", c.Duration("duration"))
	time.Sleep(c.Duration("duration"))
	stop.Store(true)
	wg.Wait()

	dom.Retire(current.Load())

	s := dom.Stats()
	log.Info("stress complete",
		"swaps", swaps.Load(),
		"reads", reads.Load(),
		"corrupt", corrupt.Load(),
		"retired", s.Retired,
		"reclaimed", s.Reclaimed,
		"deferred", s.Deferred,
		"passes", s.Passes)

	if n := corrupt.Load(); n > 0 {
		return fmt.Errorf("observed %d corrupt reads under protection", n)
	}
	return nil
}

// ---------------- stack soak ---------------- //

func stackCommand() *cli.Command {
	return &cli.Command{
		Name:  "stack",
		Usage: "soak the hazard-protected Treiber stack",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "concurrent push/pop workers"},
			&cli.IntFlag{Name: "ops", Value: 1_000_000, Usage: "operations per worker"},
			&cli.BoolFlag{Name: "pooled", Value: true, Usage: "recycle nodes through a pool"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: runStack,
	}
}

func runStack(c *cli.Context) error {
	log := newLogger(c)

	workers := c.Int("workers")
	ops := c.Int("ops")

	var st *lfstack.Stack[uint64]
	if c.Bool("pooled") {
		st = lfstack.NewPooled[uint64](workers + 1)
	} else {
		st = lfstack.New[uint64](workers + 1)
	}

	var (
		pushed atomic.Uint64
		popped atomic.Uint64
		wg     sync.WaitGroup
	)

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sess := st.Session()
			defer sess.Close()
			for i := 0; i < ops; i++ {
				if i%2 == 0 {
					st.Push(uint64(id)<<32 | uint64(i))
					pushed.Add(1)
				} else if _, ok := sess.Pop(); ok {
					popped.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	// Drain what the mixed phase left behind.
	sess := st.Session()
	for {
		if _, ok := sess.Pop(); !ok {
			break
		}
		popped.Add(1)
	}
	sess.Close()
	st.Close()

	if pushed.Load() != popped.Load() {
		return fmt.Errorf("lost values: pushed %d, popped %d", pushed.Load(), popped.Load())
	}
	log.Info("stack soak complete",
		"workers", workers,
		"pushed", pushed.Load(),
		"popped", popped.Load(),
		"elapsed", time.Since(start))
	return nil
}
