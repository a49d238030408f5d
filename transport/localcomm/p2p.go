// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package localcomm

import (
	"github.com/grailbio/bfs500/transport"
	"github.com/pkg/errors"
)

// request is the localcomm implementation of transport.Request. n is only
// meaningful for recv requests, and is only safe to read after Done()
// returns true (the write happens-before the close of done).
type request struct {
	done chan struct{}
	n    int
}

func (r *request) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// ISend copies buf (the caller may reuse it immediately, matching the
// non-blocking-send contract) and delivers it asynchronously to the
// matching IRecv on (dst, this rank, tag).
func (c *Comm) ISend(dst int, tag int, buf []byte) (transport.Request, error) {
	data := append([]byte(nil), buf...)
	done := make(chan struct{})
	ch := c.hub.channel(c.rank, dst, tag)
	go func() {
		ch <- message{data: data}
		close(done)
	}()
	return &request{done: done}, nil
}

// IRecv posts a receive for messages from (src, this rank, tag) into buf.
func (c *Comm) IRecv(src int, tag int, buf []byte) (transport.Request, error) {
	done := make(chan struct{})
	req := &request{done: done}
	ch := c.hub.channel(src, c.rank, tag)
	go func() {
		m := <-ch
		req.n = copy(buf, m.data)
		close(done)
	}()
	return req, nil
}

// TestAny returns the first completed request without blocking, per
// spec §4.7's "test-any primitive to find completions".
func (c *Comm) TestAny(reqs []transport.Request) (int, bool, error) {
	for i, r := range reqs {
		if r == nil {
			continue
		}
		if r.Done() {
			return i, true, nil
		}
	}
	return -1, false, nil
}

func (c *Comm) WaitAll(reqs []transport.Request) error {
	for _, r := range reqs {
		if r == nil {
			continue
		}
		lr, ok := r.(*request)
		if !ok {
			return errors.Wrap(transport.ErrUnexpectedCompletion, "localcomm: WaitAll")
		}
		<-lr.done
	}
	return nil
}

func (c *Comm) RecvLen(req transport.Request) int {
	lr, ok := req.(*request)
	if !ok {
		return 0
	}
	return lr.n
}
