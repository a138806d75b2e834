package models

import (
	"path/filepath"
	"testing"

	"github.com/CloneITai/CloneITLocalAis/config"
	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := segment.NewRegistry()
	cfg := config.Default().Segment
	cfg.InstallDir = t.TempDir()

	require.NoError(t, Register(reg, cfg))
	assert.ElementsMatch(t, []string{"grabcut", "sam_vit_b", "sam_vit_l", "sam_vit_h"}, reg.Names())
	assert.False(t, reg.Loaded("sam_vit_b"))
}

func TestRegister_CustomModel(t *testing.T) {
	reg := segment.NewRegistry()
	cfg := config.Default().Segment
	cfg.Model = "sam_vit_custom"
	cfg.Checkpoint = filepath.Join(t.TempDir(), "custom.pth")

	require.NoError(t, Register(reg, cfg))
	assert.True(t, IsKnown(reg, "sam_vit_custom"))
}

func TestRegister_UnknownModel(t *testing.T) {
	reg := segment.NewRegistry()
	cfg := config.Default().Segment
	cfg.Model = "u2net"

	err := Register(reg, cfg)
	assert.ErrorIs(t, err, segment.ErrModelNotFound)
}
