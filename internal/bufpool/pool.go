/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package bufpool implements component A: a fixed-count slab of equally
// sized byte buffers, recycled per connection. A bare sync.Pool cannot
// report exhaustion (§4.A requires acquire() to fail with ResourceExhausted
// once the slab is empty), so a buffered channel of pre-allocated slices
// gates admission, with the channel itself doubling as the free list —
// the closest stdlib-only shape to a bounded slab allocator.
package bufpool

import (
	"github.com/nabbar/edgecache/internal/nerr"
)

const (
	// DefaultBufferSize is the per-buffer size (§6 defaults, 8 KiB).
	DefaultBufferSize = 8 * 1024
	// DefaultBufferCount is the default slab size (1024 buffers).
	DefaultBufferCount = 1024
)

// Pool is a fixed-size slab of byte buffers of equal capacity.
type Pool struct {
	size int
	free chan []byte
}

// New allocates a slab of count buffers of size bytes each, pre-filled and
// ready to serve. Matches the teacher's pattern of eager allocation at
// startup to bound peak memory and avoid per-request allocation.
func New(size, count int) *Pool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if count <= 0 {
		count = DefaultBufferCount
	}

	p := &Pool{size: size, free: make(chan []byte, count)}
	for i := 0; i < count; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

// BufferSize returns the fixed capacity of every buffer in the pool.
func (p *Pool) BufferSize() int {
	return p.size
}

// Acquire returns an available buffer reset to zero length, or
// CodeResourceExhaust if the slab is fully checked out.
func (p *Pool) Acquire() ([]byte, nerr.Error) {
	select {
	case b := <-p.free:
		return b[:0], nil
	default:
		return nil, nerr.New(nerr.CodeResourceExhaust, nerr.LevelWarning, "buffer pool exhausted", nil)
	}
}

// Release returns a buffer to the pool. Buffers are only length-reset by
// consumers (on the next Acquire), never zeroed here — matching §4.A's
// "zeroed or length-reset only by consumers" invariant.
func (p *Pool) Release(b []byte) {
	if cap(b) != p.size {
		return
	}
	select {
	case p.free <- b[:cap(b)]:
	default:
		// Pool is already full (buffer acquired from elsewhere); drop it.
	}
}

// InUse reports how many buffers are currently checked out, for metrics.
func (p *Pool) InUse() int {
	return cap(p.free) - len(p.free)
}
