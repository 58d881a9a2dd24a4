// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gorilla/websocket"
)

const (
	// time allowed to write a message to the pool
	poolWriteWait = 10 * time.Second

	// time allowed to read the next pong message from the pool
	poolPongWait = 60 * time.Second

	// send pings to the pool with this period. must be less than poolPongWait
	poolPingPeriod = poolPongWait * 9 / 10
)

// PoolClient maintains the WebSocket connection to a mining pool speaking
// the kawminer.1 protocol. Jobs flow out on jobChan as they arrive; found
// nonces are submitted with Submit from any miner goroutine.
type PoolClient struct {
	conn       *websocket.Conn
	agent      string
	address    string
	jobChan    chan<- *Job
	submitChan chan SubmitMessage
	wg         sync.WaitGroup
}

// NewPoolClient returns a new instance of a pool client. Jobs received from
// the pool are delivered on jobChan.
func NewPoolClient(agent, address string, jobChan chan<- *Job) *PoolClient {
	return &PoolClient{
		agent:      agent,
		address:    address,
		jobChan:    jobChan,
		submitChan: make(chan SubmitMessage, MAX_SEARCH_RESULTS),
	}
}

// Connect connects outbound to a pool.
func (p *PoolClient) Connect(addr string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/"}
	log.Printf("Connecting to %s", u.String())

	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = append(dialer.Subprotocols, Protocol)
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	p.conn = conn

	// identify ourselves
	m := Message{Type: "subscribe", Body: SubscribeMessage{Agent: p.agent, Address: p.address}}
	return p.writeJSON(m)
}

// Submit queues a found nonce for submission to the pool. Safe to call from
// miner goroutines. Nonces are dropped rather than blocking a miner when
// the queue backs up.
func (p *PoolClient) Submit(jobID string, nonce uint64) {
	select {
	case p.submitChan <- SubmitMessage{JobID: jobID, Nonce: nonce}:
	default:
		log.Printf("Submit queue full, dropping nonce %d for job %s\n", nonce, jobID)
	}
}

// Run executes the client's reader and writer loops until the connection
// closes or Shutdown is called.
func (p *PoolClient) Run() error {
	defer p.conn.Close()

	// writer goroutine: submissions and keepalive pings
	outDone := make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(poolPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case sub, ok := <-p.submitChan:
				if !ok {
					p.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(poolWriteWait))
					return
				}
				if err := p.writeJSON(Message{Type: "submit", Body: sub}); err != nil {
					log.Printf("Write error: %s\n", err)
					return
				}
			case <-ticker.C:
				p.conn.SetWriteDeadline(time.Now().Add(poolWriteWait))
				if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Printf("Ping error: %s\n", err)
					return
				}
			case <-outDone:
				return
			}
		}
	}()

	// reader loop
	p.conn.SetReadLimit(MAX_PROTOCOL_MESSAGE_LENGTH)
	p.conn.SetReadDeadline(time.Now().Add(poolPongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(poolPongWait))
		return nil
	})
	var readErr error
	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if err := p.onMessage(message); err != nil {
			log.Printf("Error: %s, from: %s\n", err, p.conn.RemoteAddr())
			readErr = err
			break
		}
	}

	close(outDone)
	p.wg.Wait()
	return readErr
}

// Shutdown closes the connection to the pool synchronously.
func (p *PoolClient) Shutdown() {
	close(p.submitChan)
	if p.conn != nil {
		p.conn.Close()
	}
	p.wg.Wait()
}

// onMessage dispatches one message from the pool. The type is sniffed
// without unmarshalling the whole frame since jobs arrive on the hot path.
func (p *PoolClient) onMessage(message []byte) error {
	msgType, err := jsonparser.GetString(message, "type")
	if err != nil {
		return fmt.Errorf("message missing type: %s", err)
	}

	switch msgType {
	case "job":
		body, _, _, err := jsonparser.Get(message, "body", "job")
		if err != nil {
			return err
		}
		job := new(Job)
		if err := json.Unmarshal(body, job); err != nil {
			return err
		}
		log.Printf("Received job %s, height %d\n", job.ID, job.Height)
		p.jobChan <- job

	case "submit_result":
		var body json.RawMessage
		m := Message{Body: &body}
		if err := json.Unmarshal(message, &m); err != nil {
			return err
		}
		var result SubmitResultMessage
		if err := json.Unmarshal(body, &result); err != nil {
			return err
		}
		if len(result.Error) != 0 {
			log.Printf("Pool rejected nonce %d for job %s: %s\n",
				result.Nonce, result.JobID, result.Error)
		} else {
			log.Printf("Pool accepted nonce %d for job %s\n", result.Nonce, result.JobID)
		}

	default:
		log.Printf("Ignoring unknown message type: %s\n", msgType)
	}
	return nil
}

func (p *PoolClient) writeJSON(m Message) error {
	p.conn.SetWriteDeadline(time.Now().Add(poolWriteWait))
	return p.conn.WriteJSON(m)
}
