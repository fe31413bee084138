package loader

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeature struct {
	name    string
	enabled bool
	loadErr error
	loaded  bool
}

func (s *stubFeature) Name() string    { return s.name }
func (s *stubFeature) IsEnabled() bool { return s.enabled }
func (s *stubFeature) Load(app fiber.Router) error {
	s.loaded = true
	return s.loadErr
}

// TestLoadAll tests that only enabled features load and errors fail fast
// with the feature name attached.
func TestLoadAll(t *testing.T) {
	t.Run("skips disabled features", func(t *testing.T) {
		on := &stubFeature{name: "on", enabled: true}
		off := &stubFeature{name: "off", enabled: false}

		mgr := NewManager()
		mgr.Register(on)
		mgr.Register(off)

		require.NoError(t, mgr.LoadAll(fiber.New()))
		assert.True(t, on.loaded)
		assert.False(t, off.loaded)
	})

	t.Run("fails fast with feature name", func(t *testing.T) {
		broken := &stubFeature{name: "broken", enabled: true, loadErr: fmt.Errorf("boom")}
		next := &stubFeature{name: "next", enabled: true}

		mgr := NewManager()
		mgr.Register(broken)
		mgr.Register(next)

		err := mgr.LoadAll(fiber.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load feature broken")
		assert.False(t, next.loaded)
	})
}
