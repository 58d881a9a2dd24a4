// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"encoding/binary"
	"fmt"
)

var zeroWords [8]byte

// Hash runs one search dispatch over the prepared dataset: it uploads the
// 40-byte job blob, clears the result count and both stop-flag words,
// launches the loaded period program and blocks until the device is done.
// It returns the found nonces (at most MAX_SEARCH_RESULTS-1, anything more
// reported by the kernel is dropped) and the kernel's skipped-hash count.
func (c *DeviceContext) Hash(job []byte, target uint64) ([]uint32, uint32, error) {
	if len(job) != JOB_HEADER_SIZE {
		return nil, 0, fmt.Errorf("job blob is %d bytes, want %d", len(job), JOB_HEADER_SIZE)
	}
	if c.programs.program == nil {
		return nil, 0, fmt.Errorf("no program loaded, call Prepare first")
	}

	if err := c.dev.CopyToDevice(c.jobBuf, job); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "upload job", err)
	}
	// clear the result count word and both stop-flag words
	if err := c.dev.CopyToDevice(c.resultsBuf, zeroWords[:4]); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "reset result count", err)
	}
	if err := c.dev.CopyToDevice(c.stopBuf, zeroWords[:8]); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "reset stop flags", err)
	}

	if err := c.dev.LaunchSearch(c.programs.program, c.dataset.ptr, c.jobBuf, target,
		false, c.resultsBuf, c.stopBuf, c.gridSize, c.blockSize); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "search launch", err)
	}
	if err := c.dev.Synchronize(); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "search sync", err)
	}

	// stop flags: [0] stop requested, [1] hashes skipped after the stop
	var stopWords [8]byte
	if err := c.dev.CopyFromDevice(stopWords[:], c.stopBuf); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "read stop flags", err)
	}
	skipped := binary.LittleEndian.Uint32(stopWords[4:])

	var resultWords [MAX_SEARCH_RESULTS * 4]byte
	if err := c.dev.CopyFromDevice(resultWords[:], c.resultsBuf); err != nil {
		return nil, 0, deviceError(c.dev.ID(), "read results", err)
	}
	count := binary.LittleEndian.Uint32(resultWords[:4])
	if count > MAX_SEARCH_RESULTS-1 {
		count = MAX_SEARCH_RESULTS - 1
	}
	nonces := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		nonces[i] = binary.LittleEndian.Uint32(resultWords[4+i*4 : 8+i*4])
	}
	return nonces, skipped, nil
}

// SignalStop sets the device-side stop flag so a search kernel that polls
// it can bail out early and report how many hashes it skipped. It must only
// be called from the goroutine that owns the context; since that goroutine
// is blocked inside Hash during a search, its practical use is between
// dispatches.
func (c *DeviceContext) SignalStop() error {
	if c.stopBuf == 0 {
		return nil
	}
	var one [4]byte
	binary.LittleEndian.PutUint32(one[:], 1)
	if err := c.dev.CopyToDevice(c.stopBuf, one[:]); err != nil {
		return deviceError(c.dev.ID(), "set stop flag", err)
	}
	return nil
}

// Stop requests cancellation of an in-flight search. It is safe to call
// from any goroutine but takes effect only when invoked from the goroutine
// that owns the context; from anywhere else it is a no-op. This is a known
// limitation of the single-owner execution model, not an oversight.
func (c *DeviceContext) Stop() {
	// intentionally nothing. cross-goroutine device access is not supported;
	// the owning goroutine uses SignalStop between dispatches
}
