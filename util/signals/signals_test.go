// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package signals

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_waitFor(t *testing.T) {
	c := make(chan os.Signal, 2)
	exited := make(chan int, 1)
	c <- syscall.SIGTERM
	sig := waitFor(c, func(code int) { exited <- code })
	assert.Equal(t, syscall.SIGTERM, sig)
	select {
	case <-exited:
		t.Fatal("exited after a single signal")
	case <-time.After(10 * time.Millisecond):
	}
	c <- os.Interrupt
	select {
	case code := <-exited:
		assert.Equal(t, 1, code)
	case <-time.After(5 * time.Second):
		t.Fatal("second signal didn't exit")
	}
}
