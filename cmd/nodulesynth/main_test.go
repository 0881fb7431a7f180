package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/blend"
	"nodulesynth/pkg/config"
	"nodulesynth/pkg/imageio"
)

func writeSpherePatch(t *testing.T, dir, name string, n int, radius float64) {
	ct := models.NewVolume(n, n, n, models.KindInt16)
	mask := models.NewVolume(n, n, n, models.KindUint8)
	c := float64(n / 2)
	for i := range ct.Data {
		z, y, x := i/(n*n), (i/n)%n, i%n
		d := math.Sqrt(math.Pow(float64(z)-c, 2) + math.Pow(float64(y)-c, 2) + math.Pow(float64(x)-c, 2))
		if d <= radius {
			ct.Data[i] = 40
			mask.Data[i] = 1
		} else {
			ct.Data[i] = -950
		}
	}
	require.NoError(t, imageio.WriteMetaImage(filepath.Join(dir, name+"_dcm.mha"), ct, true))
	require.NoError(t, imageio.WriteMetaImage(filepath.Join(dir, name+"_seg.mha"), mask, true))
}

func TestNewCloner(t *testing.T) {
	cfg := config.DefaultConfig()
	c, err := newCloner(cfg)
	require.NoError(t, err)
	pc, ok := c.(*blend.PoissonCloner)
	require.True(t, ok)
	assert.Equal(t, cfg.Blend.Omega, pc.Omega)

	cfg.Blend.Method = "alpha"
	_, err = newCloner(cfg)
	assert.Error(t, err)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("selection:\n  seed: 5\nblend:\n  method: poisson\n"), 0644))

	cfg, err := loadConfig(&options{
		configPath: cfgPath,
		envFile:    filepath.Join(dir, "none.env"),
		overrideConfig: func(c *config.Config) {
			c.Patches.Dir = "elsewhere"
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cfg.Selection.Seed)
	assert.Equal(t, "elsewhere", cfg.Patches.Dir)

	_, err = loadConfig(&options{
		configPath:     cfgPath,
		envFile:        filepath.Join(dir, "none.env"),
		overrideConfig: func(c *config.Config) { c.Projection.Beta = -1 },
	})
	assert.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	dir := t.TempDir()
	patches := filepath.Join(dir, "patches")
	require.NoError(t, os.MkdirAll(patches, 0755))
	writeSpherePatch(t, patches, "n1", 30, 12)

	catalogPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte("img_name,diameter\nn1_dcm.mha,25\n"), 0644))

	nodulesPath := filepath.Join(dir, "nodules.json")
	require.NoError(t, os.WriteFile(nodulesPath, []byte(
		`{"boxes": [{"corners": [[42, 42, 0], [22, 42, 0], [22, 22, 0], [42, 22, 0]]}]}`), 0644))

	input := models.NewPlane(64, 64)
	for r := 0; r < 64; r++ {
		for c := 0; c < 64; c++ {
			input.Set(r, c, math.Round(float64(r+c)*255/126))
		}
	}
	inputPath := filepath.Join(dir, "cxr.png")
	require.NoError(t, imageio.SavePlane(inputPath, input, 1))

	opts := &options{
		configPath: filepath.Join(dir, "missing.yaml"),
		envFile:    filepath.Join(dir, "missing.env"),
		input:      inputPath,
		nodules:    nodulesPath,
		output:     filepath.Join(dir, "out", "synth.png"),
		previewDir: filepath.Join(dir, "preview"),
		overrideConfig: func(cfg *config.Config) {
			cfg.Patches.Catalog = catalogPath
			cfg.Patches.Dir = patches
			cfg.Output.Verbose = false
		},
	}
	require.NoError(t, run(opts))

	out, err := imageio.LoadPlane(opts.output)
	require.NoError(t, err)
	assert.Equal(t, 64, out.Rows)
	assert.Equal(t, input.Data[:64], out.Data[:64])
	assert.NotEqual(t, input.Data, out.Data)

	_, err = os.Stat(filepath.Join(opts.previewDir, "preview_000.png"))
	assert.NoError(t, err)
}
