// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import "fmt"

// DevicePtr is an opaque device memory address. The zero value means
// "not allocated".
type DevicePtr uintptr

// SearchProgram is an opaque handle to a compiled, loaded period program.
type SearchProgram interface {
	// Entry returns the kernel entry point name the program was loaded with.
	Entry() string
}

// Device is the per-accelerator capability consumed by DeviceContext.
// Implementations wrap a real driver (see cuda.go) or a fake for tests.
// All methods may block the calling goroutine; a context must only ever
// be driven by one goroutine.
type Device interface {
	// ID returns the driver ordinal of the device, used in error reporting.
	ID() int

	MemAlloc(size uint64) (DevicePtr, error)
	MemFree(ptr DevicePtr) error
	CopyToDevice(dst DevicePtr, src []byte) error
	CopyFromDevice(dst []byte, src DevicePtr) error

	// LoadSearchProgram loads compiled code and binds the named entry point.
	LoadSearchProgram(code []byte, entry string) (SearchProgram, error)
	UnloadSearchProgram(program SearchProgram) error

	// BuildDataset launches one bounded batch of the dataset generation
	// kernel: items [startItem, startItem+batchItems) are derived from the
	// light cache. The launch is asynchronous; call Synchronize to wait.
	BuildDataset(dataset, cache DevicePtr, startItem, batchItems, datasetItems, cacheItems uint32,
		mod FastModulo, gridSize, blockSize uint32) error

	// LaunchSearch launches the loaded period program over one nonce batch.
	// noEarlyExit forces the kernel to run all threads to completion even
	// after a result is found; the orchestrator always passes false.
	LaunchSearch(program SearchProgram, dataset, job DevicePtr, target uint64, noEarlyExit bool,
		results, stop DevicePtr, gridSize, blockSize uint32) error

	Synchronize() error
}

// ProgramGenerator produces compiled period programs for a device
// architecture. Generate must be deterministic for a given period and
// architecture pair. With prefetchOnly set the caller wants the artifact
// compiled and cached but will not load it; implementations may still
// return the code.
type ProgramGenerator interface {
	Generate(period uint64, archMajor, archMinor int, sizes DatasetSizes, prefetchOnly bool) (code []byte, entry string, err error)
}

// DeviceError is a fatal device-level failure. The context that produced it
// is left in an undefined state and must be torn down by the caller.
type DeviceError struct {
	DeviceID int
	Op       string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %d: %s: %s", e.DeviceID, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func deviceError(id int, op string, err error) error {
	return &DeviceError{DeviceID: id, Op: op, Err: err}
}
