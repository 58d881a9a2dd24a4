//go:build cuda
// +build cuda

// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

//#cgo LDFLAGS: -L./cuda/build -lkawminer_cu -lcuda
//
// #include <stdint.h>
// #include <stdlib.h>
// #include <stddef.h>
//
// extern int kawpow_init();
// extern int kawpow_device_count();
// extern int kawpow_device_arch(int device, int *major, int *minor);
// extern int kawpow_mem_alloc(int device, size_t size, uint64_t *ptr);
// extern int kawpow_mem_free(int device, uint64_t ptr);
// extern int kawpow_memcpy_htod(int device, uint64_t dst, const void *src, size_t len);
// extern int kawpow_memcpy_dtoh(int device, void *dst, uint64_t src, size_t len);
// extern int kawpow_program_load(int device, const void *code, size_t code_len,
//     const char *entry, uint64_t *program);
// extern int kawpow_program_unload(int device, uint64_t program);
// extern int kawpow_build_dataset(int device, uint64_t dataset, uint64_t cache,
//     uint32_t start_item, uint32_t batch_items, uint32_t dataset_items, uint32_t cache_items,
//     uint32_t mod_reciprocal, uint32_t mod_increment, uint32_t mod_shift,
//     uint32_t grid, uint32_t block);
// extern int kawpow_launch_search(int device, uint64_t program, uint64_t dataset,
//     uint64_t job, uint64_t target, int no_early_exit, uint64_t results, uint64_t stop,
//     uint32_t grid, uint32_t block);
// extern int kawpow_synchronize(int device);
// extern int kawpow_generate_program(uint64_t period, int arch_major, int arch_minor,
//     const uint64_t *sizes, size_t num_sizes, int prefetch_only,
//     void **code, size_t *code_len, char **entry);
// extern void kawpow_release_program(void *code, char *entry);
//
import "C"

import (
	"fmt"
	"unsafe"
)

const CUDA_ENABLED = true

// CudaInit is called on startup. It returns the number of usable devices.
func CudaInit() int {
	if C.kawpow_init() != 0 {
		return 0
	}
	return int(C.kawpow_device_count())
}

// CudaDevice is the Device implementation backed by the bundled CUDA
// kernel library. The kernel bodies live in cuda/ and are built with nvcc;
// only their launch shims are visible here.
type CudaDevice struct {
	ordinal int
}

// NewCudaDevice returns the Device for a driver ordinal.
func NewCudaDevice(ordinal int) *CudaDevice {
	return &CudaDevice{ordinal: ordinal}
}

// Arch returns the device's compute architecture for the program generator.
func (d *CudaDevice) Arch() (int, int, error) {
	var major, minor C.int
	if rc := C.kawpow_device_arch(C.int(d.ordinal), &major, &minor); rc != 0 {
		return 0, 0, cudaError("device arch", rc)
	}
	return int(major), int(minor), nil
}

func (d *CudaDevice) ID() int { return d.ordinal }

func (d *CudaDevice) MemAlloc(size uint64) (DevicePtr, error) {
	var ptr C.uint64_t
	if rc := C.kawpow_mem_alloc(C.int(d.ordinal), C.size_t(size), &ptr); rc != 0 {
		return 0, cudaError("mem alloc", rc)
	}
	return DevicePtr(ptr), nil
}

func (d *CudaDevice) MemFree(ptr DevicePtr) error {
	if rc := C.kawpow_mem_free(C.int(d.ordinal), C.uint64_t(ptr)); rc != 0 {
		return cudaError("mem free", rc)
	}
	return nil
}

func (d *CudaDevice) CopyToDevice(dst DevicePtr, src []byte) error {
	if rc := C.kawpow_memcpy_htod(C.int(d.ordinal), C.uint64_t(dst),
		unsafe.Pointer(&src[0]), C.size_t(len(src))); rc != 0 {
		return cudaError("memcpy htod", rc)
	}
	return nil
}

func (d *CudaDevice) CopyFromDevice(dst []byte, src DevicePtr) error {
	if rc := C.kawpow_memcpy_dtoh(C.int(d.ordinal), unsafe.Pointer(&dst[0]),
		C.uint64_t(src), C.size_t(len(dst))); rc != 0 {
		return cudaError("memcpy dtoh", rc)
	}
	return nil
}

func (d *CudaDevice) LoadSearchProgram(code []byte, entry string) (SearchProgram, error) {
	centry := C.CString(entry)
	defer C.free(unsafe.Pointer(centry))
	var program C.uint64_t
	if rc := C.kawpow_program_load(C.int(d.ordinal), unsafe.Pointer(&code[0]),
		C.size_t(len(code)), centry, &program); rc != 0 {
		return nil, cudaError("program load", rc)
	}
	return &cudaProgram{handle: uint64(program), entry: entry}, nil
}

func (d *CudaDevice) UnloadSearchProgram(program SearchProgram) error {
	p := program.(*cudaProgram)
	if rc := C.kawpow_program_unload(C.int(d.ordinal), C.uint64_t(p.handle)); rc != 0 {
		return cudaError("program unload", rc)
	}
	return nil
}

func (d *CudaDevice) BuildDataset(dataset, cache DevicePtr, startItem, batchItems, datasetItems, cacheItems uint32,
	mod FastModulo, gridSize, blockSize uint32) error {
	if rc := C.kawpow_build_dataset(C.int(d.ordinal), C.uint64_t(dataset), C.uint64_t(cache),
		C.uint32_t(startItem), C.uint32_t(batchItems), C.uint32_t(datasetItems), C.uint32_t(cacheItems),
		C.uint32_t(mod.Reciprocal), C.uint32_t(mod.Increment), C.uint32_t(mod.Shift),
		C.uint32_t(gridSize), C.uint32_t(blockSize)); rc != 0 {
		return cudaError("build dataset", rc)
	}
	return nil
}

func (d *CudaDevice) LaunchSearch(program SearchProgram, dataset, job DevicePtr, target uint64, noEarlyExit bool,
	results, stop DevicePtr, gridSize, blockSize uint32) error {
	p := program.(*cudaProgram)
	exit := C.int(0)
	if noEarlyExit {
		exit = 1
	}
	if rc := C.kawpow_launch_search(C.int(d.ordinal), C.uint64_t(p.handle), C.uint64_t(dataset),
		C.uint64_t(job), C.uint64_t(target), exit, C.uint64_t(results), C.uint64_t(stop),
		C.uint32_t(gridSize), C.uint32_t(blockSize)); rc != 0 {
		return cudaError("launch search", rc)
	}
	return nil
}

func (d *CudaDevice) Synchronize() error {
	if rc := C.kawpow_synchronize(C.int(d.ordinal)); rc != 0 {
		return cudaError("synchronize", rc)
	}
	return nil
}

// CudaProgramGenerator is the native PTX program generator bundled with the
// kernel library. Output is deterministic for a given period and
// architecture pair.
type CudaProgramGenerator struct{}

// Generate implements ProgramGenerator.
func (CudaProgramGenerator) Generate(period uint64, archMajor, archMinor int,
	sizes DatasetSizes, prefetchOnly bool) ([]byte, string, error) {
	prefetch := C.int(0)
	if prefetchOnly {
		prefetch = 1
	}
	var sizesPtr *C.uint64_t
	if len(sizes) != 0 {
		sizesPtr = (*C.uint64_t)(unsafe.Pointer(&sizes[0]))
	}
	var code unsafe.Pointer
	var codeLen C.size_t
	var entry *C.char
	if rc := C.kawpow_generate_program(C.uint64_t(period), C.int(archMajor), C.int(archMinor),
		sizesPtr, C.size_t(len(sizes)), prefetch, &code, &codeLen, &entry); rc != 0 {
		return nil, "", cudaError("generate program", rc)
	}
	defer C.kawpow_release_program(code, entry)
	return C.GoBytes(code, C.int(codeLen)), C.GoString(entry), nil
}

type cudaProgram struct {
	handle uint64
	entry  string
}

func (p *cudaProgram) Entry() string { return p.entry }

func cudaError(op string, rc C.int) error {
	return fmt.Errorf("%s failed with CUDA error %d", op, int(rc))
}
