// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

// the below values are fixed by the KawPow algorithm and must match the device kernels.
// changing any of them produces shares no pool will accept

const EPOCH_LENGTH = 7500 // blocks per epoch

const PERIOD_LENGTH = 3 // blocks per program period

const DATASET_ITEM_SIZE = 64 // bytes per dataset item

const LIGHT_CACHE_ITEM_SIZE = 64 // bytes per light cache item

const MIX_BYTES = 128 // dataset access width

const DATASET_BYTES_INIT = 1 << 30 // dataset size at epoch 0

const DATASET_BYTES_GROWTH = 1 << 23 // dataset growth per epoch

const CACHE_BYTES_INIT = 1 << 24 // light cache size at epoch 0

const CACHE_BYTES_GROWTH = 1 << 17 // light cache growth per epoch

const LIGHT_CACHE_ROUNDS = 3 // host-side cache mixing rounds

const JOB_HEADER_SIZE = 40 // bytes: 32 byte header hash + 8 byte start nonce

// the below values affect the orchestrator only, not the algorithm

// device buffer capacities are rounded up to a multiple of this
const BUFFER_CHUNK_SIZE = 4 * 1024 * 1024

// result buffer is MAX_SEARCH_RESULTS words: 1 count word plus up to
// MAX_SEARCH_RESULTS-1 nonces. anything the kernel reports past the cap is dropped
const MAX_SEARCH_RESULTS = 16

// dataset generation is dispatched in bounded batches to stay under
// driver watchdog limits
const DATASET_BATCH_ITEMS = 1 << 18

// default per-device launch shape
const DEFAULT_GRID_SIZE = 8192
const DEFAULT_BLOCK_SIZE = 256

// the below values only affect pool behavior

const DEFAULT_POOL_PORT = 9432

const MAX_PROTOCOL_MESSAGE_LENGTH = 32 * 1024
