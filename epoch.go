// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"math/big"

	"golang.org/x/crypto/sha3"
)

// CalcEpoch returns the epoch a block height falls in. The light cache and
// dataset are constant within an epoch.
func CalcEpoch(height uint64) uint64 {
	return height / EPOCH_LENGTH
}

// CalcPeriod returns the program period a block height falls in. The
// compiled search program is constant within a period.
func CalcPeriod(height uint64) uint64 {
	return height / PERIOD_LENGTH
}

// CalcDatasetSize returns the dataset size in bytes for an epoch.
// Sizes follow the published init+growth schedule, reduced until the item
// count divided by the mix width is prime.
func CalcDatasetSize(epoch uint64) uint64 {
	size := uint64(DATASET_BYTES_INIT) + uint64(DATASET_BYTES_GROWTH)*epoch - MIX_BYTES
	for !isPrime(size / MIX_BYTES) {
		size -= 2 * MIX_BYTES
	}
	return size
}

// CalcCacheSize returns the light cache size in bytes for an epoch.
func CalcCacheSize(epoch uint64) uint64 {
	size := uint64(CACHE_BYTES_INIT) + uint64(CACHE_BYTES_GROWTH)*epoch - LIGHT_CACHE_ITEM_SIZE
	for !isPrime(size / LIGHT_CACHE_ITEM_SIZE) {
		size -= 2 * LIGHT_CACHE_ITEM_SIZE
	}
	return size
}

// SeedHash returns the 32-byte seed for an epoch: keccak-256 applied to a
// zero seed once per elapsed epoch.
func SeedHash(epoch uint64) [32]byte {
	var seed [32]byte
	for i := uint64(0); i < epoch; i++ {
		hasher := sha3.NewLegacyKeccak256()
		hasher.Write(seed[:])
		hasher.Sum(seed[:0])
	}
	return seed
}

// DatasetSizes maps epochs to dataset byte sizes for the program generator,
// which bakes the size of the current epoch's dataset into the compiled
// program.
type DatasetSizes []uint64

// NewDatasetSizes precomputes dataset sizes for epochs [0, epochs).
func NewDatasetSizes(epochs int) DatasetSizes {
	sizes := make(DatasetSizes, epochs)
	for i := range sizes {
		sizes[i] = CalcDatasetSize(uint64(i))
	}
	return sizes
}

// ForEpoch returns the dataset size for an epoch, computing it on the fly
// if the table is too short.
func (s DatasetSizes) ForEpoch(epoch uint64) uint64 {
	if epoch < uint64(len(s)) {
		return s[epoch]
	}
	return CalcDatasetSize(epoch)
}

func isPrime(n uint64) bool {
	return new(big.Int).SetUint64(n).ProbablyPrime(16)
}
