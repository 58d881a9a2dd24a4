// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPoolClient(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: []string{Protocol}}
	subscribed := make(chan SubscribeMessage, 1)
	submitted := make(chan SubmitMessage, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %s", err)
			return
		}
		defer conn.Close()

		// the client identifies itself first
		var body json.RawMessage
		m := Message{Body: &body}
		if err := conn.ReadJSON(&m); err != nil || m.Type != "subscribe" {
			t.Errorf("Expected subscribe, got %q, err %v", m.Type, err)
			return
		}
		var sub SubscribeMessage
		if err := json.Unmarshal(body, &sub); err != nil {
			t.Errorf("Bad subscribe body: %s", err)
			return
		}
		subscribed <- sub

		// hand out a job
		job := &Job{ID: "j1", Height: 30, Target: 1 << 48}
		job.HeaderHash[0] = 0xab
		if err := conn.WriteJSON(Message{Type: "job", Body: JobMessage{Job: job}}); err != nil {
			t.Errorf("Write job failed: %s", err)
			return
		}

		// collect a submission
		m = Message{Body: &body}
		if err := conn.ReadJSON(&m); err != nil || m.Type != "submit" {
			t.Errorf("Expected submit, got %q, err %v", m.Type, err)
			return
		}
		var s SubmitMessage
		if err := json.Unmarshal(body, &s); err != nil {
			t.Errorf("Bad submit body: %s", err)
			return
		}
		submitted <- s

		conn.WriteJSON(Message{Type: "submit_result",
			Body: SubmitResultMessage{JobID: s.JobID, Nonce: s.Nonce}})
	}))
	defer server.Close()

	jobChan := make(chan *Job, 1)
	client := NewPoolClient("kawminer-test/1", "miner-address", jobChan)
	addr := strings.TrimPrefix(server.URL, "http://")
	if err := client.Connect(addr); err != nil {
		t.Fatal(err)
	}
	go client.Run()

	select {
	case sub := <-subscribed:
		if sub.Address != "miner-address" {
			t.Fatalf("Subscribed with address %q", sub.Address)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for subscribe")
	}

	var job *Job
	select {
	case job = <-jobChan:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for job")
	}
	if job.ID != "j1" || job.Height != 30 || job.HeaderHash[0] != 0xab {
		t.Fatalf("Bad job: %+v", job)
	}

	client.Submit(job.ID, 12345)
	select {
	case s := <-submitted:
		if s.JobID != "j1" || s.Nonce != 12345 {
			t.Fatalf("Bad submission: %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for submission")
	}

	client.Shutdown()
}

func TestJobSearchBlob(t *testing.T) {
	job := &Job{ID: "j1", Height: 30}
	for i := range job.HeaderHash {
		job.HeaderHash[i] = byte(i)
	}
	blob := job.SearchBlob(0x1122334455667788)
	if len(blob) != JOB_HEADER_SIZE {
		t.Fatalf("Blob is %d bytes, want %d", len(blob), JOB_HEADER_SIZE)
	}
	for i := 0; i < 32; i++ {
		if blob[i] != byte(i) {
			t.Fatal("Header hash not at blob start")
		}
	}
	// start nonce is little-endian
	if blob[32] != 0x88 || blob[39] != 0x11 {
		t.Fatal("Start nonce not little-endian encoded")
	}
}

func TestHeaderHashJSON(t *testing.T) {
	var h HeaderHash
	h[0] = 0xab
	out, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var h2 HeaderHash
	if err := json.Unmarshal(out, &h2); err != nil {
		t.Fatal(err)
	}
	if h != h2 {
		t.Fatal("Header hash JSON roundtrip mismatch")
	}
	if err := json.Unmarshal([]byte(`"zz"`), &h2); err == nil {
		t.Fatal("Expected an error for a short hex string")
	}
}
