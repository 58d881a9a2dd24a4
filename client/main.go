// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	. "github.com/kawminer/kawminer"
	"github.com/logrusorgru/aurora"
)

// A GPU miner speaking the kawminer pool protocol
func main() {
	// flags
	poolPtr := flag.String("pool", "", "Address of the pool to mine against, host:port")
	addressPtr := flag.String("address", "", "Address which receives credit for submitted shares")
	dataDirPtr := flag.String("datadir", "", "Path to a directory to cache compiled programs")
	compressPtr := flag.Bool("compress", false, "Compress cached programs on disk with lz4")
	numMinersPtr := flag.Int("numminers", 0, "Number of devices to mine with, 0 means all")
	gridPtr := flag.Int("grid", DEFAULT_GRID_SIZE, "Search kernel grid size")
	blockPtr := flag.Int("block", DEFAULT_BLOCK_SIZE, "Search kernel block size")
	epochsPtr := flag.Int("epochs", 1024, "Number of epochs to precompute dataset sizes for")
	flag.Parse()

	if len(*poolPtr) == 0 {
		log.Fatal("-pool argument required")
	}
	if len(*addressPtr) == 0 {
		log.Fatal("-address argument required to receive credit for shares")
	}
	if len(*dataDirPtr) == 0 {
		log.Fatal("-datadir argument required")
	}

	if !CUDA_ENABLED {
		log.Fatal("Built without CUDA support, rebuild with -tags cuda")
	}
	deviceCount := CudaInit()
	if deviceCount == 0 {
		log.Fatal("No usable devices found")
	}
	if *numMinersPtr > 0 && *numMinersPtr < deviceCount {
		deviceCount = *numMinersPtr
	}
	fmt.Println(aurora.Bold("kawminer"), "mining with", aurora.Bold(strconv.Itoa(deviceCount)), "device(s)")

	// set up the program store around the native generator
	storePath := filepath.Join(*dataDirPtr, "programs.db")
	store, err := NewProgramStoreDisk(storePath, CudaProgramGenerator{}, false, *compressPtr)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	sizes := NewDatasetSizes(*epochsPtr)

	// connect to the pool
	jobChan := make(chan *Job, 1)
	pool := NewPoolClient("kawminer/1", *addressPtr, jobChan)
	if err := pool.Connect(*poolPtr); err != nil {
		log.Fatal(err)
	}
	poolDone := make(chan struct{})
	go func() {
		if err := pool.Run(); err != nil {
			log.Printf("Pool connection closed: %s\n", err)
		}
		close(poolDone)
	}()

	// start the miners
	hashUpdateChan := make(chan int64)
	monitor := NewHashrateMonitor(hashUpdateChan)
	monitor.Run()

	miners := make([]*Miner, deviceCount)
	for i := 0; i < deviceCount; i++ {
		dev := NewCudaDevice(i)
		major, minor, err := dev.Arch()
		if err != nil {
			log.Fatal(err)
		}
		miners[i] = NewMiner(dev, store, major, minor,
			uint32(*gridPtr), uint32(*blockPtr), pool, sizes, hashUpdateChan, i)
		miners[i].Run()
	}

	// shutdown on ^C
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case job, ok := <-jobChan:
				if !ok {
					return
				}
				for _, m := range miners {
					m.SetJob(job)
				}
			case <-poolDone:
				return
			case sig := <-c:
				log.Printf("Received signal: %s\n", sig)
				return
			}
		}
	}()
	<-done

	log.Println("Shutting down...")
	for _, m := range miners {
		m.Shutdown()
	}
	monitor.Shutdown()
	pool.Shutdown()
	log.Println(aurora.Bold("Goodbye"))
}
