// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"log"
	"runtime"
	"sync"
	"time"
)

// ShareSubmitter receives nonces that met a job's target.
type ShareSubmitter interface {
	Submit(jobID string, nonce uint64)
}

// Miner drives one device context. It owns the context exclusively: all
// Prepare and Hash calls happen on the miner's goroutine, which is locked
// to an OS thread for the benefit of drivers with thread-affine contexts.
type Miner struct {
	ctx            *DeviceContext
	submitter      ShareSubmitter
	sizes          DatasetSizes
	num            int
	batchSize      uint64
	jobChan        chan *Job
	hashUpdateChan chan int64
	shutdownChan   chan struct{}
	wg             sync.WaitGroup

	// host-side light cache for the epoch we last prepared
	cacheEpoch uint64
	cache      []byte
}

// HashrateMonitor collects hash counts from all miners in order to monitor and display the aggregate hashrate.
type HashrateMonitor struct {
	hashUpdateChan chan int64
	shutdownChan   chan struct{}
	wg             sync.WaitGroup
}

// NewMiner returns a new Miner instance driving the given device.
func NewMiner(dev Device, gen ProgramGenerator, archMajor, archMinor int,
	gridSize, blockSize uint32, submitter ShareSubmitter, sizes DatasetSizes,
	hashUpdateChan chan int64, num int) *Miner {
	ctx := NewDeviceContext(dev, gen, archMajor, archMinor, gridSize, blockSize)
	return &Miner{
		ctx:            ctx,
		submitter:      submitter,
		sizes:          sizes,
		num:            num,
		batchSize:      uint64(ctx.gridSize) * uint64(ctx.blockSize),
		jobChan:        make(chan *Job, 1),
		hashUpdateChan: hashUpdateChan,
		shutdownChan:   make(chan struct{}),
		cacheEpoch:     ^uint64(0),
	}
}

// NewHashrateMonitor returns a new HashrateMonitor instance.
func NewHashrateMonitor(hashUpdateChan chan int64) *HashrateMonitor {
	return &HashrateMonitor{
		hashUpdateChan: hashUpdateChan,
		shutdownChan:   make(chan struct{}),
	}
}

// SetJob hands the miner a new job, replacing any job it is working on.
func (m *Miner) SetJob(job *Job) {
	// drain a stale job the miner hasn't picked up yet
	select {
	case <-m.jobChan:
	default:
	}
	m.jobChan <- job
}

// Run executes the miner's main loop in its own goroutine.
func (m *Miner) Run() {
	m.wg.Add(1)
	go m.run()
}

func (m *Miner) run() {
	defer m.wg.Done()

	// the device context must stay on one thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var job *Job
	var startNonce uint64
	var hashes int64
	for {
		select {
		case newJob := <-m.jobChan:
			log.Printf("Miner %d starting job %s at height %d\n", m.num, newJob.ID, newJob.Height)
			if err := m.prepare(newJob.Height); err != nil {
				log.Printf("Miner %d device failure: %s\n", m.num, err)
				return
			}
			job = newJob
			startNonce = uint64(m.num) << 40

		case _, ok := <-m.shutdownChan:
			if !ok {
				log.Printf("Miner %d shutting down...\n", m.num)
				return
			}

		case <-ticker.C:
			// update hashcount for hashrate monitor
			m.hashUpdateChan <- hashes
			hashes = 0

		default:
			if job == nil {
				// wait for the first job
				time.Sleep(100 * time.Millisecond)
				continue
			}

			nonces, skipped, err := m.ctx.Hash(job.SearchBlob(startNonce), job.Target)
			if err != nil {
				log.Printf("Miner %d device failure: %s\n", m.num, err)
				return
			}
			for _, nonce := range nonces {
				log.Printf("Miner %d found nonce %d for job %s\n", m.num, nonce, job.ID)
				m.submitter.Submit(job.ID, startNonce+uint64(nonce))
			}
			hashes += int64(m.batchSize) - int64(skipped)
			startNonce += m.batchSize
		}
	}
}

// prepare reconciles the device with a job height, rebuilding the host-side
// light cache only when the epoch changed.
func (m *Miner) prepare(height uint64) error {
	epoch := CalcEpoch(height)
	if epoch != m.cacheEpoch {
		log.Printf("Miner %d building light cache for epoch %d\n", m.num, epoch)
		m.cache = GenerateLightCache(epoch)
		m.cacheEpoch = epoch
	}
	return m.ctx.Prepare(height, m.cache, m.sizes.ForEpoch(epoch), m.sizes)
}

// Shutdown stops the miner synchronously.
func (m *Miner) Shutdown() {
	close(m.shutdownChan)
	m.wg.Wait()
	log.Printf("Miner %d shutdown\n", m.num)
}

// Run executes the hashrate monitor's main loop in its own goroutine.
func (h *HashrateMonitor) Run() {
	h.wg.Add(1)
	go h.run()
}

func (h *HashrateMonitor) run() {
	defer h.wg.Done()

	var totalHashes int64
	updateInterval := 1 * time.Minute
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-h.shutdownChan:
			if !ok {
				log.Println("Hashrate monitor shutting down...")
				return
			}
		case hashes := <-h.hashUpdateChan:
			totalHashes += hashes
		case <-ticker.C:
			hps := float64(totalHashes) / updateInterval.Seconds()
			totalHashes = 0
			log.Printf("Hashrate: %.2f MH/s", hps/1000/1000)
		}
	}
}

// Shutdown stops the hashrate monitor synchronously.
func (h *HashrateMonitor) Shutdown() {
	close(h.shutdownChan)
	h.wg.Wait()
	log.Println("Hashrate monitor shutdown")
}
