// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// HeaderHash is the 32-byte hash of the block header being mined.
type HeaderHash [32]byte

// String implements the Stringer interface.
func (h HeaderHash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON marshals HeaderHash as a hex string.
func (h HeaderHash) MarshalJSON() ([]byte, error) {
	s := "\"" + h.String() + "\""
	return []byte(s), nil
}

// UnmarshalJSON unmarshals a hex string to HeaderHash.
func (h *HeaderHash) UnmarshalJSON(b []byte) error {
	if len(b) != 64+2 {
		return fmt.Errorf("Invalid header hash")
	}
	hashBytes, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	copy(h[:], hashBytes)
	return nil
}

// Job is one unit of pool work: search for nonces making the header hash
// meet the target at the given height.
type Job struct {
	ID         string     `json:"id"`
	Height     uint64     `json:"height"`
	HeaderHash HeaderHash `json:"header_hash"`
	Target     uint64     `json:"target"`
}

// SearchBlob encodes the fixed 40-byte kernel input for this job: the
// header hash followed by the little-endian start nonce of the batch.
func (j *Job) SearchBlob(startNonce uint64) []byte {
	blob := make([]byte, JOB_HEADER_SIZE)
	copy(blob[:32], j.HeaderHash[:])
	binary.LittleEndian.PutUint64(blob[32:], startNonce)
	return blob
}
