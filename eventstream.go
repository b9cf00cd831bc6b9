// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

// containerEventTypes are the websocket events a per-chromosome
// container run cares about.
var containerEventTypes = []string{"stderr", "crunch-run", "crunchstat", "update"}

type eventMessage struct {
	Status     int
	ObjectUUID string `json:"object_uuid"`
	EventType  string `json:"event_type"`
	Properties struct {
		Text string
	}
}

// eventStream delivers Arvados websocket events for subscribed
// object UUIDs, reconnecting as needed.
type eventStream struct {
	*arvados.Client
	subscribers map[string]map[chan<- eventMessage]int
	wantClose   chan struct{}
	conn        *websocket.Conn
	mtx         sync.Mutex
}

func subscription(method, uuid string) map[string]interface{} {
	return map[string]interface{}{
		"method": method,
		"filters": [][]interface{}{
			{"object_uuid", "=", uuid},
			{"event_type", "in", containerEventTypes},
		},
	}
}

// Subscribe sends events concerning uuid to ch until a matching
// number of Unsubscribe calls.
func (es *eventStream) Subscribe(ch chan<- eventMessage, uuid string) {
	es.mtx.Lock()
	defer es.mtx.Unlock()
	if es.subscribers == nil {
		es.subscribers = map[string]map[chan<- eventMessage]int{}
		es.wantClose = make(chan struct{})
		go es.run()
	}
	chans := es.subscribers[uuid]
	if chans == nil {
		chans = map[chan<- eventMessage]int{}
		es.subscribers[uuid] = chans
	}
	chans[ch]++
	if len(chans) == 1 && chans[ch] == 1 && es.conn != nil {
		go json.NewEncoder(es.conn).Encode(subscription("subscribe", uuid))
	}
}

func (es *eventStream) Unsubscribe(ch chan<- eventMessage, uuid string) {
	es.mtx.Lock()
	defer es.mtx.Unlock()
	chans := es.subscribers[uuid]
	n := chans[ch] - 1
	if n > 0 {
		chans[ch] = n
		return
	} else if n < 0 {
		return
	}
	delete(chans, ch)
	if len(chans) > 0 {
		return
	}
	delete(es.subscribers, uuid)
	if es.conn != nil {
		go json.NewEncoder(es.conn).Encode(subscription("unsubscribe", uuid))
	}
}

func (es *eventStream) Close() {
	es.mtx.Lock()
	defer es.mtx.Unlock()
	if es.subscribers != nil {
		es.subscribers = nil
		close(es.wantClose)
	}
}

func (es *eventStream) dial() (*websocket.Conn, error) {
	var cluster arvados.Cluster
	err := es.RequestAndDecode(&cluster, "GET", arvados.EndpointConfigGet.Path, nil, nil)
	if err != nil {
		return nil, err
	}
	wsURL := cluster.Services.Websocket.ExternalURL
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/websocket"
	display := wsURL.String()
	wsURL.RawQuery = url.Values{"api_token": []string{es.AuthToken}}.Encode()
	conn, err := websocket.Dial(wsURL.String(), "", cluster.Services.Controller.ExternalURL.String())
	if err != nil {
		return nil, err
	}
	log.Printf("connected to websocket at %s", display)
	return conn, nil
}

func (es *eventStream) run() {
	for {
		conn, err := es.dial()
		if err != nil {
			log.Warnf("websocket connection error: %s", err)
			select {
			case <-es.wantClose:
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		es.mtx.Lock()
		es.conn = conn
		resubscribe := make([]string, 0, len(es.subscribers))
		for uuid := range es.subscribers {
			resubscribe = append(resubscribe, uuid)
		}
		es.mtx.Unlock()
		go func() {
			enc := json.NewEncoder(conn)
			for _, uuid := range resubscribe {
				enc.Encode(subscription("subscribe", uuid))
			}
		}()

		if es.relay(conn) {
			return
		}
	}
}

// relay forwards messages from conn to subscribers until conn fails
// (returns false) or the stream is closed (returns true).
func (es *eventStream) relay(conn *websocket.Conn) bool {
	dec := json.NewDecoder(conn)
	for {
		var msg eventMessage
		err := dec.Decode(&msg)
		select {
		case <-es.wantClose:
			return true
		default:
		}
		if err != nil {
			log.Printf("error decoding websocket message: %s", err)
			es.mtx.Lock()
			es.conn = nil
			es.mtx.Unlock()
			go conn.Close()
			return false
		}
		es.mtx.Lock()
		for ch := range es.subscribers[msg.ObjectUUID] {
			ch := ch
			go func() { ch <- msg }()
		}
		es.mtx.Unlock()
	}
}
