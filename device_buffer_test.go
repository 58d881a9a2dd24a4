// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import "testing"

func TestDeviceBufferEnsure(t *testing.T) {
	dev := newFakeDevice(0)
	var buf deviceBuffer

	// first ensure allocates a chunk-aligned capacity
	changed, err := buf.ensure(dev, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("First ensure must report a size change")
	}
	if buf.size != 100 {
		t.Fatalf("Logical size is %d, want 100", buf.size)
	}
	if buf.capacity != BUFFER_CHUNK_SIZE {
		t.Fatalf("Capacity is %d, want %d", buf.capacity, BUFFER_CHUNK_SIZE)
	}
	if dev.allocCount != 1 {
		t.Fatalf("Expected 1 allocation, got %d", dev.allocCount)
	}

	// same size is a no-op
	changed, err = buf.ensure(dev, 100)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("Unchanged size must be a no-op")
	}

	// growing within capacity changes size but not the allocation
	ptr := buf.ptr
	changed, err = buf.ensure(dev, BUFFER_CHUNK_SIZE)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || buf.ptr != ptr || dev.allocCount != 1 {
		t.Fatal("Ensure within capacity must keep the allocation")
	}

	// shrinking never gives capacity back
	if _, err := buf.ensure(dev, 10); err != nil {
		t.Fatal(err)
	}
	if buf.capacity != BUFFER_CHUNK_SIZE || buf.ptr != ptr {
		t.Fatal("Capacity must not shrink")
	}

	// exceeding capacity frees and reallocates to the next chunk multiple
	changed, err = buf.ensure(dev, 5*BUFFER_CHUNK_SIZE+1)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("Growth must report a size change")
	}
	if buf.capacity != 6*BUFFER_CHUNK_SIZE {
		t.Fatalf("Capacity is %d, want %d", buf.capacity, uint64(6*BUFFER_CHUNK_SIZE))
	}
	if len(dev.freed) != 1 || dev.freed[0] != ptr {
		t.Fatal("Old allocation not freed on growth")
	}
	if dev.allocCount != 2 {
		t.Fatalf("Expected 2 allocations, got %d", dev.allocCount)
	}
}

func TestDeviceBufferCapacityMonotonic(t *testing.T) {
	dev := newFakeDevice(0)
	var buf deviceBuffer

	var lastCapacity uint64
	for _, size := range []uint64{1, BUFFER_CHUNK_SIZE, 100, 3 * BUFFER_CHUNK_SIZE,
		2 * BUFFER_CHUNK_SIZE, 1, 10 * BUFFER_CHUNK_SIZE} {
		if _, err := buf.ensure(dev, size); err != nil {
			t.Fatal(err)
		}
		if buf.capacity < lastCapacity {
			t.Fatalf("Capacity shrank from %d to %d", lastCapacity, buf.capacity)
		}
		if buf.capacity%BUFFER_CHUNK_SIZE != 0 {
			t.Fatalf("Capacity %d is not a chunk multiple", buf.capacity)
		}
		if buf.capacity < buf.size {
			t.Fatalf("Capacity %d below logical size %d", buf.capacity, buf.size)
		}
		lastCapacity = buf.capacity
	}
}

func TestDeviceBufferAllocFailureIsFatal(t *testing.T) {
	dev := newFakeDevice(7)
	dev.failOp = "alloc"
	var buf deviceBuffer

	_, err := buf.ensure(dev, 100)
	if err == nil {
		t.Fatal("Expected allocation failure")
	}
	devErr, ok := err.(*DeviceError)
	if !ok {
		t.Fatalf("Expected a DeviceError, got %T", err)
	}
	if devErr.DeviceID != 7 {
		t.Fatalf("Expected device id 7, got %d", devErr.DeviceID)
	}
}
