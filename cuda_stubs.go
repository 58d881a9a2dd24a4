//go:build !cuda
// +build !cuda

// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import "fmt"

const CUDA_ENABLED = false

// CudaInit is called on startup. It returns the number of usable devices.
func CudaInit() int {
	return 0
}

// CudaDevice is unavailable without the cuda build tag. Every method
// reports the missing backend.
type CudaDevice struct {
	ordinal int
}

// NewCudaDevice returns the Device for a driver ordinal.
func NewCudaDevice(ordinal int) *CudaDevice {
	return &CudaDevice{ordinal: ordinal}
}

// Arch returns the device's compute architecture for the program generator.
func (d *CudaDevice) Arch() (int, int, error) {
	return 0, 0, errNoCuda
}

func (d *CudaDevice) ID() int { return d.ordinal }

func (d *CudaDevice) MemAlloc(size uint64) (DevicePtr, error) { return 0, errNoCuda }

func (d *CudaDevice) MemFree(ptr DevicePtr) error { return errNoCuda }

func (d *CudaDevice) CopyToDevice(dst DevicePtr, src []byte) error { return errNoCuda }

func (d *CudaDevice) CopyFromDevice(dst []byte, src DevicePtr) error { return errNoCuda }

func (d *CudaDevice) LoadSearchProgram(code []byte, entry string) (SearchProgram, error) {
	return nil, errNoCuda
}

func (d *CudaDevice) UnloadSearchProgram(program SearchProgram) error { return errNoCuda }

func (d *CudaDevice) BuildDataset(dataset, cache DevicePtr, startItem, batchItems, datasetItems, cacheItems uint32,
	mod FastModulo, gridSize, blockSize uint32) error {
	return errNoCuda
}

func (d *CudaDevice) LaunchSearch(program SearchProgram, dataset, job DevicePtr, target uint64, noEarlyExit bool,
	results, stop DevicePtr, gridSize, blockSize uint32) error {
	return errNoCuda
}

func (d *CudaDevice) Synchronize() error { return errNoCuda }

// CudaProgramGenerator is unavailable without the cuda build tag.
type CudaProgramGenerator struct{}

// Generate implements ProgramGenerator.
func (CudaProgramGenerator) Generate(period uint64, archMajor, archMinor int,
	sizes DatasetSizes, prefetchOnly bool) ([]byte, string, error) {
	return nil, "", errNoCuda
}

var errNoCuda = fmt.Errorf("built without CUDA support, rebuild with -tags cuda")
