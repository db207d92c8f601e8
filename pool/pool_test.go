// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package pool_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ceetaro/suitkaise/errorkinds"
	"github.com/ceetaro/suitkaise/pool"
	"github.com/ceetaro/suitkaise/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func double(x int) (any, error) { return x * 2, nil }

func TestMapPreservesInputOrder(t *testing.T) {
	p := pool.New(4)
	results, err := p.Map(any(func(x int) (any, error) { return double(x) }), []any{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, []any{2, 4, 6, 8, 10}, results)
}

func TestMapSurfacesFirstInputOrderFailure(t *testing.T) {
	p := pool.New(2)
	boom := errors.New("boom")
	work := func(x int) (any, error) {
		if x == 3 {
			return nil, boom
		}
		return x, nil
	}
	_, err := p.Map(any(work), []any{1, 2, 3, 4})
	assert.ErrorIs(t, err, boom)
}

func TestUnorderedMapReturnsEveryCompletedItem(t *testing.T) {
	p := pool.New(4)
	work := func(x int) (any, error) { return x * x, nil }
	results, err := p.UnorderedMap(any(work), []any{1, 2, 3, 4})
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{1, 4, 9, 16}, results)
}

func TestIMapYieldsInInputOrder(t *testing.T) {
	p := pool.New(4)
	work := func(x int) (any, error) {
		time.Sleep(time.Duration(5-x) * time.Millisecond)
		return x, nil
	}
	it := p.IMap(any(work), []any{1, 2, 3, 4})
	var got []any
	for {
		v, err, ok := it.Next()
		if !ok {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []any{1, 2, 3, 4}, got)
}

func TestUnorderedIMapYieldsEveryItem(t *testing.T) {
	p := pool.New(4)
	work := func(x int) (any, error) { return x, nil }
	it := p.UnorderedIMap(any(work), []any{1, 2, 3, 4})
	var got []any
	for {
		v, err, ok := it.Next()
		if !ok {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.ElementsMatch(t, []any{1, 2, 3, 4}, got)
}

func TestStarUnpacksTupleAsPositionalArgs(t *testing.T) {
	p := pool.New(2).Star()
	work := func(a, b int) (any, error) { return a + b, nil }
	results, err := p.Map(any(work), []any{[]any{1, 2}, []any{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []any{3, 7}, results)
}

func TestStarRejectsNonSequenceInput(t *testing.T) {
	p := pool.New(1).Star()
	work := func(a int) (any, error) { return a, nil }
	_, err := p.Map(any(work), []any{42})
	assert.ErrorIs(t, err, errorkinds.ErrStarArgument)
}

func TestMapDispatchesWorkUnitConstructor(t *testing.T) {
	p := pool.New(2)
	ctor := func(input any) (*unit.Unit, error) {
		n := input.(int)
		cfg := unit.NewProcessConfig()
		if err := cfg.SetRuns(1); err != nil {
			return nil, err
		}
		u, err := unit.New(func(ctx *unit.Context) error {
			ctx.State = n * n
			return nil
		}, cfg)
		if err != nil {
			return nil, err
		}
		u.OnResult = func(ctx *unit.Context) (any, error) { return ctx.State, nil }
		return u, nil
	}

	results, err := p.Map(unit.Constructor(ctor), []any{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []any{4, 9, 16}, results)
}

func TestTimeoutBoundsSlowItems(t *testing.T) {
	p := pool.New(1).Timeout(5 * time.Millisecond)
	work := func(x int) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return x, nil
	}
	_, err := p.Map(any(work), []any{1})
	var timeoutErr *errorkinds.ResultTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestMapRejectsUnsupportedWorkType(t *testing.T) {
	p := pool.New(1)
	_, err := p.Map(42, []any{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool: work must be")
}
