// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log"

	"github.com/pierrec/lz4"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ProgramStoreDisk wraps a ProgramGenerator with an on-disk artifact cache
// using LevelDB. Compiling a period program is the most expensive step of an
// epoch boundary so compiled code is persisted per period and architecture;
// prefetch-only generations are stored too, which is what makes the
// prefetch pay off across restarts.
type ProgramStoreDisk struct {
	db        *leveldb.DB
	generator ProgramGenerator
	readOnly  bool
	compress  bool
}

// storedProgram is the on-disk value format.
type storedProgram struct {
	Entry      string
	Code       []byte
	Compressed bool
}

// NewProgramStoreDisk returns program storage backed by a LevelDB database
// at dbPath, generating through gen on a miss.
func NewProgramStoreDisk(dbPath string, gen ProgramGenerator, readOnly, compress bool) (*ProgramStoreDisk, error) {
	opts := opt.Options{ReadOnly: readOnly}
	db, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, err
	}
	return &ProgramStoreDisk{
		db:        db,
		generator: gen,
		readOnly:  readOnly,
		compress:  compress,
	}, nil
}

// Generate implements ProgramGenerator. Stored artifacts are returned
// without invoking the wrapped generator; misses are generated, stored and
// returned. prefetchOnly requests are fully generated and stored so a later
// load of the same period is a hit.
func (s *ProgramStoreDisk) Generate(period uint64, archMajor, archMinor int,
	sizes DatasetSizes, prefetchOnly bool) ([]byte, string, error) {
	key := programKey(period, archMajor, archMinor)

	encoded, err := s.db.Get(key, nil)
	if err != nil && err != leveldb.ErrNotFound {
		return nil, "", err
	}
	if err == nil {
		code, entry, err := decodeStoredProgram(encoded)
		if err != nil {
			return nil, "", err
		}
		return code, entry, nil
	}

	// miss; compile it
	code, entry, err := s.generator.Generate(period, archMajor, archMinor, sizes, prefetchOnly)
	if err != nil {
		return nil, "", err
	}

	if s.readOnly {
		return code, entry, nil
	}
	encoded, err = encodeStoredProgram(code, entry, s.compress)
	if err != nil {
		return nil, "", err
	}
	wo := opt.WriteOptions{Sync: true}
	if err := s.db.Put(key, encoded, &wo); err != nil {
		return nil, "", err
	}
	log.Printf("Stored program for period %d, arch %d.%d\n", period, archMajor, archMinor)
	return code, entry, nil
}

// Close is called to close the underlying database.
func (s *ProgramStoreDisk) Close() error {
	return s.db.Close()
}

func programKey(period uint64, archMajor, archMinor int) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], period)
	binary.BigEndian.PutUint32(key[8:12], uint32(archMajor))
	binary.BigEndian.PutUint32(key[12:16], uint32(archMinor))
	return key
}

func encodeStoredProgram(code []byte, entry string, compress bool) ([]byte, error) {
	sp := storedProgram{Entry: entry, Code: code, Compressed: compress}
	if compress {
		// compress with lz4
		in := bytes.NewReader(code)
		zout := new(bytes.Buffer)
		zw := lz4.NewWriter(zout)
		if _, err := io.Copy(zw, in); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		sp.Code = zout.Bytes()
	}
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(sp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeStoredProgram(encoded []byte) ([]byte, string, error) {
	var sp storedProgram
	if err := gob.NewDecoder(bytes.NewReader(encoded)).Decode(&sp); err != nil {
		return nil, "", err
	}
	if len(sp.Entry) == 0 {
		return nil, "", fmt.Errorf("stored program missing entry point")
	}
	if sp.Compressed {
		// uncompress
		zin := bytes.NewBuffer(sp.Code)
		out := new(bytes.Buffer)
		zr := lz4.NewReader(zin)
		if _, err := io.Copy(out, zr); err != nil {
			return nil, "", err
		}
		sp.Code = out.Bytes()
	}
	return sp.Code, sp.Entry, nil
}
