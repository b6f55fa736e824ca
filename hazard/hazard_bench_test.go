package hazard

import (
	"sync/atomic"
	"testing"
)

func BenchmarkProtectRelease(b *testing.B) {
	d := New[obj](8)
	var src atomic.Pointer[obj]
	src.Store(&obj{id: 1})

	hp := d.Acquire()
	defer hp.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hp.Protect(&src)
		hp.ResetProtection()
	}
}

func BenchmarkProtectParallel(b *testing.B) {
	d := New[obj](256)
	var src atomic.Pointer[obj]
	src.Store(&obj{id: 1})

	b.RunParallel(func(pb *testing.PB) {
		hp := d.Acquire()
		defer hp.Release()
		for pb.Next() {
			hp.Protect(&src)
			hp.ResetProtection()
		}
	})
}

func BenchmarkRetireReclaim(b *testing.B) {
	d := New(64, WithFree[obj](func(*obj) {}))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Retire(&obj{id: i})
	}
}
