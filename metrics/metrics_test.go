package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withFakeReporter(t *testing.T) *FakeMetricsReporter {
	r := NewFakeMetricsReporter()
	Reporter = r
	t.Cleanup(func() {
		resetReporter()
		resetDefaultTags()
	})
	return r
}

func TestCount_DefaultTags(t *testing.T) {
	r := withFakeReporter(t)
	SetAppName("lockbox")

	Count("vault.item.upsert", 1, map[string]string{"shared": "false"}, 1.0)
	Count("vault.item.upsert", 2, nil, 1.0)

	assert.Equal(t, int64(3), r.CountOf("vault.item.upsert"))
	assert.Equal(t, map[string]string{"app": "lockbox", "shared": "false"}, r.counts[0].Tags)
	assert.Equal(t, map[string]string{"app": "lockbox"}, r.counts[1].Tags)
}

func TestTime(t *testing.T) {
	r := withFakeReporter(t)

	tm := Time("vault.digest", nil, 1.0)
	tm.SetTags(map[string]string{"items": "2"})
	tm.Done()

	timings := r.Timings("vault.digest")
	if assert.Len(t, timings, 1) {
		assert.Equal(t, map[string]string{"items": "2"}, timings[0].Tags)
		assert.True(t, timings[0].Value >= 0)
	}
}

func TestConvertTags(t *testing.T) {
	tags := convertTags(map[string]string{"items": "2", " App ": "LockBox"})
	assert.Equal(t, []string{"app:lockbox", "items:2"}, tags)
	assert.Nil(t, convertTags(nil))
}
