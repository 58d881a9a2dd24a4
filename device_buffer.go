// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

// deviceBuffer is a device allocation tracked by logical size and capacity.
// Capacity is always a multiple of BUFFER_CHUNK_SIZE and never shrinks;
// the allocation is only replaced when a requested size exceeds it.
type deviceBuffer struct {
	ptr      DevicePtr
	size     uint64 // logical size in bytes
	capacity uint64 // allocated size in bytes, capacity >= size
}

// ensure reconciles the buffer with the requested logical size. It returns
// true when the logical size changed, meaning the caller must refresh the
// buffer's contents (upload for the cache, regenerate for the dataset).
// Allocation failure is fatal to the owning device context.
func (b *deviceBuffer) ensure(dev Device, size uint64) (bool, error) {
	if size == b.size {
		return false, nil
	}
	if size > b.capacity {
		if b.ptr != 0 {
			if err := dev.MemFree(b.ptr); err != nil {
				return false, deviceError(dev.ID(), "free buffer", err)
			}
			b.ptr = 0
			b.capacity = 0
		}
		capacity := (size + BUFFER_CHUNK_SIZE - 1) / BUFFER_CHUNK_SIZE * BUFFER_CHUNK_SIZE
		ptr, err := dev.MemAlloc(capacity)
		if err != nil {
			return false, deviceError(dev.ID(), "allocate buffer", err)
		}
		b.ptr = ptr
		b.capacity = capacity
	}
	b.size = size
	return true, nil
}
