package recognize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// scriptedProvider returns a fixed result or error and counts invocations.
type scriptedProvider struct {
	name   string
	calls  int
	result Result
	err    error
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Recognize(_ context.Context, _ []byte, _ string) (Result, error) {
	s.calls++
	if s.err != nil {
		return Result{}, s.err
	}
	return s.result, nil
}

func wordResult(texts ...string) Result {
	words := make([]Word, 0, len(texts))
	for _, t := range texts {
		words = append(words, Word{Text: t, Confidence: 90})
	}
	return Result{Words: words}
}

func TestCascadeAutoPrefersCloudUnderLimit(t *testing.T) {
	cloud := &scriptedProvider{name: "cloud", result: wordResult("hello")}
	local := &scriptedProvider{name: "local", result: wordResult("fallback")}
	c := NewCascade(cloud, local, CascadeConfig{})

	res, err := c.Recognize(context.Background(), make([]byte, 1024), "image/png")

	assert.NoError(t, err)
	assert.Equal(t, "cloud", res.Provider)
	assert.Equal(t, 1, cloud.calls)
	assert.Equal(t, 0, local.calls)
}

func TestCascadeAutoOversizedPayloadSkipsCloud(t *testing.T) {
	cloud := &scriptedProvider{name: "cloud", result: wordResult("hello")}
	local := &scriptedProvider{name: "local", result: wordResult("offline")}
	c := NewCascade(cloud, local, CascadeConfig{CloudSizeLimit: 16})

	res, err := c.Recognize(context.Background(), make([]byte, 16), "image/png")

	assert.NoError(t, err)
	assert.Equal(t, "local", res.Provider)
	assert.Equal(t, 0, cloud.calls, "oversized payloads must never reach the cloud provider")
	assert.Equal(t, 1, local.calls)
}

func TestCascadeFallsBackOnCloudFailure(t *testing.T) {
	cloud := &scriptedProvider{name: "cloud", err: errors.New("quota exceeded")}
	local := &scriptedProvider{name: "local", result: wordResult("offline")}
	c := NewCascade(cloud, local, CascadeConfig{})

	res, err := c.Recognize(context.Background(), make([]byte, 1024), "image/png")

	assert.NoError(t, err)
	assert.Equal(t, "local", res.Provider)
	assert.Equal(t, []Word{{Text: "offline", Confidence: 90}}, res.Words)
	assert.Equal(t, 1, cloud.calls)
	assert.Equal(t, 1, local.calls)
}

func TestCascadeAllProvidersFail(t *testing.T) {
	cloud := &scriptedProvider{name: "cloud", err: errors.New("quota exceeded")}
	local := &scriptedProvider{name: "local", err: errors.New("connection refused")}
	c := NewCascade(cloud, local, CascadeConfig{})

	_, err := c.Recognize(context.Background(), make([]byte, 1024), "image/png")

	assert.Error(t, err)
	assert.ErrorContains(t, err, "all recognition providers failed")
	assert.ErrorContains(t, err, "quota exceeded")
	assert.ErrorContains(t, err, "connection refused")
}

func TestCascadeForcedModes(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		wantCloud  int
		wantLocal  int
		wantErr    bool
		failsCloud bool
	}{
		{
			name:      "cloud_mode_only_calls_cloud",
			mode:      ModeCloud,
			wantCloud: 1,
		},
		{
			name:       "cloud_mode_does_not_fall_back",
			mode:       ModeCloud,
			failsCloud: true,
			wantCloud:  1,
			wantErr:    true,
		},
		{
			name:      "local_mode_only_calls_local",
			mode:      ModeLocal,
			wantLocal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := &scriptedProvider{name: "cloud", result: wordResult("a")}
			if tt.failsCloud {
				cloud.err = errors.New("unavailable")
			}
			local := &scriptedProvider{name: "local", result: wordResult("b")}
			c := NewCascade(cloud, local, CascadeConfig{Mode: tt.mode})

			_, err := c.Recognize(context.Background(), make([]byte, 8), "image/png")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCloud, cloud.calls)
			assert.Equal(t, tt.wantLocal, local.calls)
		})
	}
}

func TestCascadeNoEligibleProvider(t *testing.T) {
	tests := []struct {
		name string
		c    *Cascade
	}{
		{
			name: "no_providers_at_all",
			c:    NewCascade(nil, nil, CascadeConfig{}),
		},
		{
			name: "cloud_mode_without_cloud_provider",
			c:    NewCascade(nil, &scriptedProvider{name: "local"}, CascadeConfig{Mode: ModeCloud}),
		},
		{
			name: "local_mode_without_local_provider",
			c:    NewCascade(&scriptedProvider{name: "cloud"}, nil, CascadeConfig{Mode: ModeLocal}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.c.Recognize(context.Background(), []byte("x"), "image/png")
			assert.ErrorIs(t, err, ErrNoProvider)
		})
	}
}

func TestCascadeCancelledContextStopsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cloud := &scriptedProvider{name: "cloud", err: context.Canceled}
	local := &scriptedProvider{name: "local", result: wordResult("b")}
	c := NewCascade(cloud, local, CascadeConfig{})

	_, err := c.Recognize(ctx, make([]byte, 8), "image/png")

	assert.Error(t, err)
	assert.Equal(t, 1, cloud.calls)
	assert.Equal(t, 0, local.calls, "no fallback after cancellation")
}
