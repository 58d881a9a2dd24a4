// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"testing"
	"time"
)

type chanSubmitter chan SubmitMessage

func (c chanSubmitter) Submit(jobID string, nonce uint64) {
	c <- SubmitMessage{JobID: jobID, Nonce: nonce}
}

func TestMinerSubmitsFoundNonces(t *testing.T) {
	if testing.Short() {
		t.Skip("building the light cache takes a while")
	}

	dev := newFakeDevice(0)
	gen := new(recordingGenerator)
	submitter := make(chanSubmitter, 16)
	hashUpdateChan := make(chan int64, 1)

	// small dataset so the fake device doesn't hold a real epoch's worth
	sizes := DatasetSizes{1 << 20}

	// every dispatch reports one found nonce at offset 5
	dev.reportCount = 1
	dev.foundNonces = []uint32{5}

	miner := NewMiner(dev, gen, 8, 6, 1, 16, submitter, sizes, hashUpdateChan, 0)
	miner.Run()
	miner.SetJob(&Job{ID: "j1", Height: 30, Target: 1 << 48})

	select {
	case share := <-submitter:
		if share.JobID != "j1" {
			t.Fatalf("Share for job %q, want j1", share.JobID)
		}
		// miner 0 starts its nonce space at 0, first dispatch offset 5
		if share.Nonce != 5 {
			t.Fatalf("Share nonce %d, want 5", share.Nonce)
		}
	case <-time.After(2 * time.Minute):
		t.Fatal("Timed out waiting for a share")
	}

	// keep draining shares so the miner never blocks on a full channel
	// while shutting down
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-submitter:
			case <-done:
				return
			}
		}
	}()
	miner.Shutdown()
	close(done)

	// the device was prepared exactly once for the job's period
	if got := gen.loads(); len(got) != 1 || got[0] != 10 {
		t.Fatalf("Expected one load of period 10, got %v", got)
	}
	if len(dev.launchCalls) == 0 {
		t.Fatal("No search launches recorded")
	}
}
