// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

// Protocol is the name of this version of the kawminer pool protocol.
const Protocol = "kawminer.1"

// Message is a message frame for all messages in the kawminer.1 protocol.
type Message struct {
	Type string      `json:"type"`
	Body interface{} `json:"body,omitempty"`
}

// SubscribeMessage is sent by a miner after connecting to identify itself
// and the address mined rewards are credited to.
// Type: "subscribe".
type SubscribeMessage struct {
	Agent   string `json:"agent"`
	Address string `json:"address"`
}

// JobMessage is sent by the pool whenever new work is available. It
// replaces any previous job.
// Type: "job".
type JobMessage struct {
	Job *Job `json:"job"`
}

// SubmitMessage is sent by a miner when a search dispatch found a nonce
// meeting the job's target.
// Type: "submit".
type SubmitMessage struct {
	JobID string `json:"job_id"`
	Nonce uint64 `json:"nonce"`
}

// SubmitResultMessage is the pool's verdict on a submitted nonce.
// Type: "submit_result".
type SubmitResultMessage struct {
	JobID string `json:"job_id"`
	Nonce uint64 `json:"nonce"`
	Error string `json:"error,omitempty"`
}
