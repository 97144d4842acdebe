package ordersync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Jitter: func() time.Duration { return 0 }}

	assert.Equal(t, 1*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
}

func TestRetryPolicy_DefaultJitterBounds(t *testing.T) {
	p := DefaultRetryPolicy(3)
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestRetryPolicy_WaitUsesSleep(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		Base:   time.Second,
		Jitter: func() time.Duration { return 250 * time.Millisecond },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	assert.NoError(t, p.Wait(context.Background(), 2))
	assert.Equal(t, []time.Duration{4250 * time.Millisecond}, slept)
}

func TestSleepOrDone(t *testing.T) {
	assert.NoError(t, SleepOrDone(context.Background(), 0))
	assert.NoError(t, SleepOrDone(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepOrDone(ctx, time.Hour), context.Canceled)
}
