// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"fmt"
	"log"
)

// DeviceContext owns all device-side state for one accelerator: the light
// cache and dataset buffers, the loaded period program and the fixed job,
// result and stop scratch buffers. A context must be driven by exactly one
// goroutine; see Miner. Any error returned by a context method is fatal to
// the context, which must then be torn down.
type DeviceContext struct {
	dev       Device
	programs  *programCache
	gridSize  uint32
	blockSize uint32

	cache      deviceBuffer
	dataset    deviceBuffer
	cacheItems uint32

	// fixed-size scratch, allocated on first Prepare
	jobBuf     DevicePtr
	resultsBuf DevicePtr
	stopBuf    DevicePtr
}

// NewDeviceContext returns a context for the device using the given program
// generator and launch shape. Device memory is not touched until Prepare.
func NewDeviceContext(dev Device, gen ProgramGenerator, archMajor, archMinor int,
	gridSize, blockSize uint32) *DeviceContext {
	if gridSize == 0 {
		gridSize = DEFAULT_GRID_SIZE
	}
	if blockSize == 0 {
		blockSize = DEFAULT_BLOCK_SIZE
	}
	return &DeviceContext{
		dev:       dev,
		programs:  newProgramCache(gen, archMajor, archMinor),
		gridSize:  gridSize,
		blockSize: blockSize,
	}
}

// Prepare reconciles the device with a job height: the light cache buffer
// is uploaded if its size changed, the dataset is regenerated if its size
// changed, and the period program is swapped if the period changed.
// Unchanged state is never touched, which makes the call cheap for every
// height inside a period.
func (c *DeviceContext) Prepare(height uint64, cache []byte, datasetSize uint64, sizes DatasetSizes) error {
	if err := c.ensureScratch(); err != nil {
		return err
	}

	changed, err := c.cache.ensure(c.dev, uint64(len(cache)))
	if err != nil {
		return err
	}
	if changed {
		if err := c.dev.CopyToDevice(c.cache.ptr, cache); err != nil {
			return deviceError(c.dev.ID(), "upload light cache", err)
		}
		c.cacheItems = uint32(uint64(len(cache)) / LIGHT_CACHE_ITEM_SIZE)
	}

	changed, err = c.dataset.ensure(c.dev, datasetSize)
	if err != nil {
		return err
	}
	if changed {
		// contents are device-generated, no host upload
		if err := c.generateDataset(); err != nil {
			return err
		}
	}

	return c.programs.ensure(c.dev, height, sizes)
}

// generateDataset derives the full dataset from the light cache in bounded
// batches. Each launch covers at most DATASET_BATCH_ITEMS items and is
// synchronized before the next, keeping individual kernel runtimes under
// driver watchdog limits.
func (c *DeviceContext) generateDataset() error {
	datasetItems := uint32(c.dataset.size / DATASET_ITEM_SIZE)
	if c.cacheItems == 0 {
		return deviceError(c.dev.ID(), "generate dataset",
			fmt.Errorf("no light cache uploaded"))
	}
	mod := NewFastModulo(c.cacheItems)

	log.Printf("Device %d generating %d dataset items\n", c.dev.ID(), datasetItems)
	for start := uint32(0); start < datasetItems; start += DATASET_BATCH_ITEMS {
		batch := uint32(DATASET_BATCH_ITEMS)
		if datasetItems-start < batch {
			batch = datasetItems - start
		}
		if err := c.dev.BuildDataset(c.dataset.ptr, c.cache.ptr, start, batch,
			datasetItems, c.cacheItems, mod, c.gridSize, c.blockSize); err != nil {
			return deviceError(c.dev.ID(), "dataset batch launch", err)
		}
		if err := c.dev.Synchronize(); err != nil {
			return deviceError(c.dev.ID(), "dataset batch sync", err)
		}
	}
	return nil
}

// ensureScratch lazily allocates the fixed job, result and stop buffers.
func (c *DeviceContext) ensureScratch() error {
	if c.jobBuf != 0 {
		return nil
	}
	var err error
	if c.jobBuf, err = c.dev.MemAlloc(JOB_HEADER_SIZE); err != nil {
		return deviceError(c.dev.ID(), "allocate job buffer", err)
	}
	if c.resultsBuf, err = c.dev.MemAlloc(MAX_SEARCH_RESULTS * 4); err != nil {
		return deviceError(c.dev.ID(), "allocate result buffer", err)
	}
	if c.stopBuf, err = c.dev.MemAlloc(8); err != nil {
		return deviceError(c.dev.ID(), "allocate stop buffer", err)
	}
	return nil
}
