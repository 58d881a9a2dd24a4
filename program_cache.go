// Copyright 2020 kawminer developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package kawminer

import "log"

// no program loaded yet
const periodNone = ^uint64(0)

// programCache tracks which period's compiled program is loaded on the
// device and swaps programs at period boundaries. After each swap it asks
// the generator for the following period in prefetch mode so the artifact
// is warm before the boundary that needs it.
type programCache struct {
	generator ProgramGenerator
	archMajor int
	archMinor int

	period  uint64
	program SearchProgram
}

func newProgramCache(generator ProgramGenerator, archMajor, archMinor int) *programCache {
	return &programCache{
		generator: generator,
		archMajor: archMajor,
		archMinor: archMinor,
		period:    periodNone,
	}
}

// ensure makes the program for the given height's period the loaded one.
// A reload happens iff the period differs from the loaded period; heights
// are not assumed to be monotonic. Compilation and load failures are fatal
// since hashing is impossible without a program.
func (c *programCache) ensure(dev Device, height uint64, sizes DatasetSizes) error {
	period := CalcPeriod(height)
	if c.period != periodNone && period == c.period {
		return nil
	}

	if c.program != nil {
		if err := dev.UnloadSearchProgram(c.program); err != nil {
			return deviceError(dev.ID(), "unload program", err)
		}
		c.program = nil
		c.period = periodNone
	}

	code, entry, err := c.generator.Generate(period, c.archMajor, c.archMinor, sizes, false)
	if err != nil {
		return deviceError(dev.ID(), "generate program", err)
	}
	program, err := dev.LoadSearchProgram(code, entry)
	if err != nil {
		return deviceError(dev.ID(), "load program", err)
	}
	c.program = program
	c.period = period
	log.Printf("Device %d loaded program for period %d\n", dev.ID(), period)

	// warm the generator's cache for the next boundary. the artifact is not
	// loaded here, only compiled
	if _, _, err := c.generator.Generate(period+1, c.archMajor, c.archMinor, sizes, true); err != nil {
		return deviceError(dev.ID(), "prefetch program", err)
	}
	return nil
}
