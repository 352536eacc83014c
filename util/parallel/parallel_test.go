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

package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// It's easy to implement a concurrent map operation using InvokeN.
func ExampleInvokeN_map() {
	ctx := context.Background()
	isEven := func(x int) bool {
		return x%2 == 0
	}
	in := []int{5, 6, 7}
	res := make([]bool, 3)
	_ = InvokeN(ctx, len(in), func(ctx context.Context, i int) error {
		res[i] = isEven(in[i])
		return nil
	})
	fmt.Printf("result: %v\n", res)
	// Output:
	// result: [false true false]
}

func Test_Invoke_basic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	err := Invoke(ctx)
	assert.NoError(err)

	res := make([]int, 3)
	err = Invoke(ctx,
		func(ctx context.Context) error { res[0] = 5; return nil },
		func(ctx context.Context) error { res[1] = 6; return errors.New("roar") },
		func(ctx context.Context) error { res[2] = 7; return nil },
	)
	assert.EqualError(err, "roar")
	assert.Equal([]int{5, 6, 7}, res)
}

func Test_InvokeN_basic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	err := InvokeN(ctx, 0, func(ctx context.Context, idx int) error {
		assert.Fail("should not be called")
		return errors.New("failed")
	})
	assert.NoError(err)

	res := make([]int, 3)
	err = InvokeN(ctx, 3, func(ctx context.Context, idx int) error {
		res[idx] = idx + 3
		return ctx.Err()
	})
	assert.NoError(err)
	assert.Equal([]int{3, 4, 5}, res)
}

func Test_InvokeN_earlyExit(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := InvokeN(ctx, 10, func(ctx context.Context, i int) error {
		if i == 0 {
			return errors.New("failure")
		}
		<-ctx.Done()
		return ctx.Err()
	})
	assert.EqualError(err, "failure")
	assert.NoError(ctx.Err())
}

func Test_InvokeLimited(t *testing.T) {
	assert := assert.New(t)
	var running, maxRunning, calls int32
	err := InvokeLimited(context.Background(), 20, 3, func(ctx context.Context, i int) error {
		now := atomic.AddInt32(&running, 1)
		for {
			prev := atomic.LoadInt32(&maxRunning)
			if now <= prev || atomic.CompareAndSwapInt32(&maxRunning, prev, now) {
				break
			}
		}
		atomic.AddInt32(&calls, 1)
		atomic.AddInt32(&running, -1)
		return nil
	})
	assert.NoError(err)
	assert.Equal(int32(20), calls)
	assert.True(maxRunning <= 3, "max running: %v", maxRunning)
}

func Test_InvokeLimited_error(t *testing.T) {
	assert := assert.New(t)
	var canceled int32
	err := InvokeLimited(context.Background(), 5, 1, func(ctx context.Context, i int) error {
		if i == 1 {
			return fmt.Errorf("failed %d", i)
		}
		if ctx.Err() != nil {
			atomic.AddInt32(&canceled, 1)
		}
		return nil
	})
	assert.EqualError(err, "failed 1")
	// With one at a time, the callbacks after the failure see the canceled
	// context.
	assert.Equal(int32(3), canceled)
}

func Test_Go(t *testing.T) {
	assert := assert.New(t)
	x := 3
	wait := Go(func() {
		x++
	})
	wait()
	assert.Equal(4, x)
	// Extra calls to wait are ok.
	wait()
	assert.Equal(4, x)
}
