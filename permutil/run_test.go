/*
Copyright © 2024 the Permeation authors.
This file is part of Permeation.

Permeation is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Permeation is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Permeation.  If not, see <http://www.gnu.org/licenses/>.
*/

package permutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/permeation"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readVar(t *testing.T, file, name string) []float64 {
	t.Helper()
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	v, _, err := permeation.ReadVariable(f, name)
	require.NoError(t, err)
	return v
}

func TestRun(t *testing.T) {
	v := testConfig()
	v.Set("FinalTime", 1e7)
	v.Set("SnapshotTimes", []string{"1000", "100000"})
	s, err := SetupFromConfig(v)
	require.NoError(t, err)

	dir := t.TempDir()
	out := filepath.Join(dir, "flux.nc")
	snap := filepath.Join(dir, "profile.nc")
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	res, err := Run(cmd, checkLogFile("", out), out, snap, logrus.InfoLevel, s)
	require.NoError(t, err)
	assert.InEpsilon(t, res.PRF.Theoretical, res.PRF.Computed, 0.01)
	assert.Contains(t, buf.String(), "PRF: computed")
	assert.Contains(t, buf.String(), "permeation completed successfully")

	log, err := os.ReadFile(filepath.Join(dir, "flux.log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "permeation completed successfully")

	for _, variant := range []string{"with_barrier", "no_barrier"} {
		flux := readVar(t, filepath.Join(dir, "flux_"+variant+".nc"), "solute_flux_surface_2")
		require.NotEmpty(t, flux)
		assert.Greater(t, flux[len(flux)-1], 0.0, variant)

		times := readVar(t, filepath.Join(dir, "profile_"+variant+".nc"), "time")
		assert.Equal(t, []float64{1000, 100000}, times, variant)
	}

	with := readVar(t, filepath.Join(dir, "flux_with_barrier.nc"), "solute_flux_surface_2")
	no := readVar(t, filepath.Join(dir, "flux_no_barrier.nc"), "solute_flux_surface_2")
	assert.InEpsilon(t, res.PRF.Computed, no[len(no)-1]/with[len(with)-1], 1e-12)
}

func TestRunLogFileError(t *testing.T) {
	s, err := SetupFromConfig(testConfig())
	require.NoError(t, err)
	_, err = Run(&cobra.Command{}, filepath.Join(t.TempDir(), "missing", "x.log"), "x.nc", "", logrus.InfoLevel, s)
	assert.Error(t, err)
}
