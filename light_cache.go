// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// GenerateLightCache builds the host-side light cache for an epoch. The
// cache is a sequential keccak-512 fill of the epoch seed followed by
// LIGHT_CACHE_ROUNDS passes of the memo-hash mix. The device derives the
// full dataset from it (see DeviceContext.Prepare).
func GenerateLightCache(epoch uint64) []byte {
	size := CalcCacheSize(epoch)
	items := int(size / LIGHT_CACHE_ITEM_SIZE)
	cache := make([]byte, size)
	seed := SeedHash(epoch)

	// sequential fill
	keccak512Into(cache[:LIGHT_CACHE_ITEM_SIZE], seed[:])
	for i := 1; i < items; i++ {
		keccak512Into(cache[i*LIGHT_CACHE_ITEM_SIZE:(i+1)*LIGHT_CACHE_ITEM_SIZE],
			cache[(i-1)*LIGHT_CACHE_ITEM_SIZE:i*LIGHT_CACHE_ITEM_SIZE])
	}

	// mixing rounds
	tmp := make([]byte, LIGHT_CACHE_ITEM_SIZE)
	for round := 0; round < LIGHT_CACHE_ROUNDS; round++ {
		for i := 0; i < items; i++ {
			item := cache[i*LIGHT_CACHE_ITEM_SIZE : (i+1)*LIGHT_CACHE_ITEM_SIZE]
			v := int(binary.LittleEndian.Uint32(item)) % items
			w := (i - 1 + items) % items
			src := cache[w*LIGHT_CACHE_ITEM_SIZE : (w+1)*LIGHT_CACHE_ITEM_SIZE]
			mix := cache[v*LIGHT_CACHE_ITEM_SIZE : (v+1)*LIGHT_CACHE_ITEM_SIZE]
			for j := 0; j < LIGHT_CACHE_ITEM_SIZE; j++ {
				tmp[j] = src[j] ^ mix[j]
			}
			keccak512Into(item, tmp)
		}
	}
	return cache
}

func keccak512Into(dst, src []byte) {
	hasher := sha3.NewLegacyKeccak512()
	hasher.Write(src)
	hasher.Sum(dst[:0])
}
