// Package launch runs benchmark sweeps: the full cross product of server
// mode, operation, payload volume, and pool sizes, with a fresh server
// process per scenario and results collected into CSV and adapters.
package launch

import (
	"fmt"

	"github.com/pithecene-io/ferry/server"
	"github.com/pithecene-io/ferry/stress"
)

// Scenario is one cell of the sweep grid.
type Scenario struct {
	Mode          server.Mode
	Operation     stress.Operation
	VolumeMB      int
	ServerWorkers int
	ClientWorkers int
}

// Name renders a compact scenario label for logs and progress output.
func (s Scenario) Name() string {
	return fmt.Sprintf("%s/%s v=%dMB srv=%d cli=%d",
		s.Mode, s.Operation, s.VolumeMB, s.ServerWorkers, s.ClientWorkers)
}

// Grid describes the sweep dimensions. Scenarios expands the cross product
// in deterministic order: mode, then operation, then volume, then client
// pool, then server pool.
type Grid struct {
	Modes         []server.Mode
	Operations    []stress.Operation
	VolumesMB     []int
	ServerWorkers []int
	ClientWorkers []int
}

// Validate rejects empty dimensions and nonsensical sizes.
func (g Grid) Validate() error {
	if len(g.Modes) == 0 {
		return fmt.Errorf("grid has no modes")
	}
	if len(g.Operations) == 0 {
		return fmt.Errorf("grid has no operations")
	}
	if len(g.VolumesMB) == 0 {
		return fmt.Errorf("grid has no volumes")
	}
	if len(g.ServerWorkers) == 0 {
		return fmt.Errorf("grid has no server pool sizes")
	}
	if len(g.ClientWorkers) == 0 {
		return fmt.Errorf("grid has no client pool sizes")
	}
	for _, v := range g.VolumesMB {
		if v <= 0 {
			return fmt.Errorf("volume %d must be positive", v)
		}
	}
	for _, w := range g.ServerWorkers {
		if w <= 0 {
			return fmt.Errorf("server pool size %d must be positive", w)
		}
	}
	for _, w := range g.ClientWorkers {
		if w <= 0 {
			return fmt.Errorf("client pool size %d must be positive", w)
		}
	}
	return nil
}

// Scenarios expands the grid.
func (g Grid) Scenarios() []Scenario {
	var out []Scenario
	for _, mode := range g.Modes {
		for _, op := range g.Operations {
			for _, vol := range g.VolumesMB {
				for _, cli := range g.ClientWorkers {
					for _, srv := range g.ServerWorkers {
						out = append(out, Scenario{
							Mode:          mode,
							Operation:     op,
							VolumeMB:      vol,
							ServerWorkers: srv,
							ClientWorkers: cli,
						})
					}
				}
			}
		}
	}
	return out
}

// DefaultGrid is the standard comparison sweep.
func DefaultGrid() Grid {
	return Grid{
		Modes:         []server.Mode{server.ModePool, server.ModeSpawn},
		Operations:    []stress.Operation{stress.OpUpload, stress.OpDownload},
		VolumesMB:     []int{10, 50, 100},
		ServerWorkers: []int{1, 5, 50},
		ClientWorkers: []int{1, 5, 50},
	}
}
