// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/lowpass/internal/img"
)

func writeTestImage(t *testing.T, fileName string) *img.Image {
	im := img.NewImage(6, 4, 3)
	for i := range im.Pix {
		im.Pix[i] = uint8(i * 7)
	}
	if err := im.WriteFile(fileName, img.DefaultQuality); err != nil {
		t.Fatal(err)
	}
	return im
}

func TestIsPathAllowed(t *testing.T) {
	tcs := []struct {
		path string
		want bool
	}{
		{"in.png", true},
		{"sub/dir/in.png", true},
		{"", false},
		{"/etc/passwd", false},
		{"../in.png", false},
		{"sub/../../in.png", false},
	}
	for _, tc := range tcs {
		if got := isPathAllowed(tc.path); got != tc.want {
			t.Errorf("isPathAllowed(%q)=%v; want %v", tc.path, got, tc.want)
		}
	}
}

func TestCheckMemory(t *testing.T) {
	c := &Context{MemoryMB: 10, BudgetMB: 7}
	if err := c.CheckMemory(6 * 1024 * 1024); err != nil {
		t.Errorf("6 MB: %v; want nil", err)
	}
	if err := c.CheckMemory(8 * 1024 * 1024); err == nil {
		t.Errorf("8 MB: nil; want error")
	}
	if err := (&Context{}).CheckMemory(1 << 40); err != nil {
		t.Errorf("unknown budget: %v; want nil", err)
	}
}

func TestNewContext(t *testing.T) {
	c := NewContext(&bytes.Buffer{})
	if c.MaxThreads < 1 {
		t.Errorf("maxThreads=%d; want >=1", c.MaxThreads)
	}
	if c.BudgetMB > c.MemoryMB {
		t.Errorf("budget=%d > memory=%d", c.BudgetMB, c.MemoryMB)
	}
}

func TestSequenceRun(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.png"), filepath.Join(dir, "out%d.png")
	orig := writeTestImage(t, in)

	var log bytes.Buffer
	c := &Context{Log: &log, MaxThreads: 1}
	opStats := NewOpStats(16)
	seq := NewOpSequence(NewOpLoad(3, in), opStats, NewOpSave(out))
	res, err := Run(seq, c)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(res.Pix, orig.Pix) {
		t.Errorf("pipeline changed pixels")
	}
	if opStats.Last == nil || opStats.Last.Width != 6 || len(opStats.Last.Channels) != 3 {
		t.Errorf("stats=%v; want 6x4 with 3 channels", opStats.Last)
	}
	saved, err := img.NewImageFromFile(filepath.Join(dir, "out3.png"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(saved.Pix, orig.Pix) {
		t.Errorf("saved pixels differ")
	}
	for _, want := range []string{"3: Loaded 6x4x3", "3: Writing 6x4x3"} {
		if !strings.Contains(log.String(), want) {
			t.Errorf("log %q; want %q", log.String(), want)
		}
	}
}

func TestSequenceJSON(t *testing.T) {
	seq := NewOpSequence(NewOpLoad(1, "a.png"), NewOpStats(99), NewOpSave("b.jpg"))
	bs, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}
	var dec OpSequence
	if err := json.Unmarshal(bs, &dec); err != nil {
		t.Fatal(err)
	}
	if len(dec.Steps) != 3 {
		t.Fatalf("steps=%d; want 3", len(dec.Steps))
	}
	load, ok := dec.Steps[0].(*OpLoad)
	if !ok || load.FileName != "a.png" || load.ID != 1 {
		t.Errorf("step 0=%#v; want load a.png", dec.Steps[0])
	}
	st, ok := dec.Steps[1].(*OpStats)
	if !ok || st.NumSamples != 99 || st.OpUnaryBase.Apply == nil {
		t.Errorf("step 1=%#v; want stats with 99 samples", dec.Steps[1])
	}
	save, ok := dec.Steps[2].(*OpSave)
	if !ok || save.FilePattern != "b.jpg" || !save.Active || save.Quality != img.DefaultQuality {
		t.Errorf("step 2=%#v; want active save b.jpg", dec.Steps[2])
	}
}

func TestSequenceJSONUnknownType(t *testing.T) {
	var dec OpSequence
	err := json.Unmarshal([]byte(`{"type":"seq","active":true,"steps":[{"type":"sharpen"}]}`), &dec)
	if err == nil || !strings.Contains(err.Error(), "sharpen") {
		t.Errorf("err=%v; want unknown operator type", err)
	}
}

func TestSandbox(t *testing.T) {
	c := &Context{Log: &bytes.Buffer{}, Sandboxed: true}
	if _, err := NewOpLoad(0, "/tmp/x.png").MakePromise(nil, c); err == nil {
		t.Errorf("absolute load path accepted in sandbox")
	}
	if _, err := NewOpSave("../x.png").MakePromise(func() (*img.Image, error) { return nil, nil }, c); err == nil {
		t.Errorf("parent save path accepted in sandbox")
	}
	if _, err := NewOpLoad(0, "x.png").MakePromise(nil, c); err != nil {
		t.Errorf("relative load path: %v", err)
	}
}

func TestOperatorInputs(t *testing.T) {
	c := &Context{Log: &bytes.Buffer{}}
	dummy := func() (*img.Image, error) { return img.NewImage(1, 1, 3), nil }
	if _, err := NewOpLoad(0, "x.png").MakePromise(dummy, c); err == nil {
		t.Errorf("load with input accepted")
	}
	if _, err := NewOpStats(1).MakePromise(nil, c); err == nil {
		t.Errorf("stats without input accepted")
	}
	if _, err := Run(NewOpSequence(), c); err == nil {
		t.Errorf("empty sequence produced an image")
	}
}

func TestSaveUnknownSuffix(t *testing.T) {
	c := &Context{Log: &bytes.Buffer{}}
	out := filepath.Join(t.TempDir(), "out.xyz")
	_, err := NewOpSave(out).Apply(img.NewImage(2, 2, 3), c)
	if err == nil || !strings.Contains(err.Error(), "unknown suffix") {
		t.Errorf("err=%v; want unknown suffix", err)
	}
}

func TestLoadConvertsToRGB(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "alpha.png")
	im := img.NewImage(3, 2, 4)
	for i := 0; i < im.Pixels(); i++ {
		im.Pix[i*4], im.Pix[i*4+3] = 100, 128
	}
	if err := im.WriteFile(fileName, img.DefaultQuality); err != nil {
		t.Fatal(err)
	}
	c := &Context{Log: &bytes.Buffer{}}
	res, err := Run(NewOpLoad(0, fileName), c)
	if err != nil {
		t.Fatal(err)
	}
	if res.Channels != 3 || res.At(2, 1, 0) != 100 {
		t.Errorf("loaded %s r=%d; want 3 channels with r=100", res.DimensionsToString(), res.At(2, 1, 0))
	}

	op := NewOpLoad(0, fileName)
	op.RGB = false
	if res, err = Run(op, c); err != nil || res.Channels != 4 {
		t.Errorf("unconverted load err=%v; want 4 channels", err)
	}
}
